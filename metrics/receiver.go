package metrics

import (
	"strconv"

	"github.com/netsampler/intflow/utils"

	"github.com/prometheus/client_golang/prometheus"
)

type ReceiverMetric struct{}

func NewReceiverMetric() *ReceiverMetric {
	return &ReceiverMetric{}
}

func (r *ReceiverMetric) Dropped(pkt utils.Message) {
	labels := prometheus.Labels{
		"remote_ip":  pkt.Src.Addr().Unmap().String(),
		"local_ip":   pkt.Dst.Addr().Unmap().String(),
		"local_port": strconv.FormatUint(uint64(pkt.Dst.Port()), 10),
	}
	MetricReceivedDroppedPackets.With(labels).Inc()
	MetricReceivedDroppedBytes.With(labels).Add(float64(len(pkt.Payload)))
}
