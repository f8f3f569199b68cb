package utils

import (
	"fmt"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/producer"
	"github.com/netsampler/intflow/transport"
)

// FlowPipe describes a report decoder/formatter pipeline.
type FlowPipe interface {
	DecodeFlow(msg interface{}) error
	Close()
}

type PipeConfig struct {
	Format    format.FormatInterface
	Transport transport.TransportInterface
	Producer  producer.ProducerInterface

	// Decoder options, defaults when nil.
	Options *intreport.Options
}

type flowpipe struct {
	format    format.FormatInterface
	transport transport.TransportInterface
	producer  producer.ProducerInterface
}

func (p *flowpipe) formatSend(flowMessageSet []producer.ProducerMessage) error {
	if p.format == nil {
		return nil
	}
	for _, msg := range flowMessageSet {
		key, data, err := p.format.Format(msg)
		if err != nil {
			return err
		}
		if p.transport != nil {
			if err = p.transport.Send(key, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *flowpipe) parseConfig(cfg *PipeConfig) {
	p.format = cfg.Format
	p.transport = cfg.Transport
	p.producer = cfg.Producer
}

// INTPipe decodes telemetry reports and hands the resulting points to the sink.
type INTPipe struct {
	flowpipe
	opts *intreport.Options
}

// PipeMessageError wraps a decode/produce error with the source of the message.
type PipeMessageError struct {
	Message Message
	Err     error
}

func (e *PipeMessageError) Error() string {
	return fmt.Sprintf("message from %s %s", e.Message.Src.String(), e.Err.Error())
}

func (e *PipeMessageError) Unwrap() error {
	return e.Err
}

func NewINTPipe(cfg *PipeConfig) *INTPipe {
	p := &INTPipe{
		opts: cfg.Options,
	}
	if p.opts == nil {
		p.opts = &intreport.DefaultOptions
	}
	p.parseConfig(cfg)
	return p
}

// DecodeFlow decodes a report and emits its points. Reports that are not INT
// are returned as errors wrapping intreport.ErrNotINT.
func (p *INTPipe) DecodeFlow(msg interface{}) error {
	pkt, ok := msg.(*Message)
	if !ok {
		return fmt.Errorf("flow is not *Message")
	}

	var packet intreport.Packet
	var err error
	if pkt.Raw {
		err = intreport.DecodeFrame(pkt.Payload, &packet, p.opts)
	} else {
		err = intreport.DecodeReport(pkt.Payload, &packet, p.opts)
	}
	if err != nil {
		return &PipeMessageError{messageHeader(pkt), err}
	}

	if p.producer == nil {
		return nil
	}
	args := producer.ProduceArgs{
		Src:          pkt.Src,
		Dst:          pkt.Dst,
		TimeReceived: pkt.Received,
	}
	flowMessageSet, err := p.producer.Produce(&packet, &args)
	defer p.producer.Commit(flowMessageSet)
	if err != nil {
		return &PipeMessageError{messageHeader(pkt), err}
	}
	return p.formatSend(flowMessageSet)
}

func (p *INTPipe) Close() {
}

// messageHeader drops the payload, whose buffer goes back to the pool after decoding.
func messageHeader(pkt *Message) Message {
	m := *pkt
	m.Payload = nil
	return m
}
