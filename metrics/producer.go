package metrics

import (
	"strconv"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/producer"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type PromProducerWrapper struct {
	wrapped  producer.ProducerInterface
	sequence *producer.SequenceTracker
}

func (p *PromProducerWrapper) Produce(msg interface{}, args *producer.ProduceArgs) ([]producer.ProducerMessage, error) {
	flowMessageSet, err := p.wrapped.Produce(msg, args)
	if err != nil {
		return flowMessageSet, err
	}

	if packet, ok := msg.(*intreport.Packet); ok {
		labels := prometheus.Labels{
			"switch_id":   strconv.FormatUint(uint64(packet.Report.SwitchID), 10),
			"hardware_id": strconv.Itoa(int(packet.Report.HardwareID)),
		}
		ReportStats.With(labels).Inc()
		ReportHops.With(prometheus.Labels{"switch_id": labels["switch_id"]}).Observe(float64(len(packet.Hops)))

		key := producer.SequenceKey(packet.Report.SwitchID, packet.Report.HardwareID)
		missing, reset, err := p.sequence.Missing(key, packet.Report.SequenceNumber)
		if err != nil {
			log.WithError(err).WithField("source", key).Warn("error saving report sequence")
		}
		if reset {
			ReportSequenceResets.With(labels).Inc()
		}
		ReportsMissing.With(labels).Set(float64(missing))
	}

	for _, msg := range flowMessageSet {
		if point, ok := msg.(*producer.Point); ok {
			PointsProduced.With(prometheus.Labels{"measurement": point.Kind.String()}).Inc()
		}
	}
	return flowMessageSet, err
}

func (p *PromProducerWrapper) Close() {
	p.wrapped.Close()
}

func (p *PromProducerWrapper) Commit(flowMessageSet []producer.ProducerMessage) {
	p.wrapped.Commit(flowMessageSet)
}

// WrapPromProducer counts reports and points, and tracks report sequence gaps.
func WrapPromProducer(wrapped producer.ProducerInterface) producer.ProducerInterface {
	return WrapPromProducerTracker(wrapped, producer.NewSequenceTracker(1000))
}

// WrapPromProducerTracker is WrapPromProducer with a given sequence tracker.
func WrapPromProducerTracker(wrapped producer.ProducerInterface, sequence *producer.SequenceTracker) producer.ProducerInterface {
	return &PromProducerWrapper{
		wrapped:  wrapped,
		sequence: sequence,
	}
}
