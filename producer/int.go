package producer

import (
	"fmt"

	"github.com/netsampler/intflow/decoders/intreport"
)

// INTProducer turns decoded telemetry reports into points.
type INTProducer struct{}

var _ ProducerInterface = (*INTProducer)(nil)

func (p *INTProducer) Produce(msg interface{}, args *ProduceArgs) ([]ProducerMessage, error) {
	packet, ok := msg.(*intreport.Packet)
	if !ok {
		return nil, fmt.Errorf("flow not recognized")
	}
	flow := NewFlowInfo(packet)
	points := Points(flow, args.TimeReceived)

	flowMessageSet := make([]ProducerMessage, len(points))
	for i, point := range points {
		flowMessageSet[i] = point
	}
	return flowMessageSet, nil
}

func (p *INTProducer) Commit(flowMessageSet []ProducerMessage) {}

func (p *INTProducer) Close() {}
