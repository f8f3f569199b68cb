package debug

import (
	"runtime/debug"

	"github.com/netsampler/intflow/producer"
)

type PanicProducerWrapper struct {
	wrapped producer.ProducerInterface
}

func (p *PanicProducerWrapper) Produce(msg interface{}, args *producer.ProduceArgs) (flowMessageSet []producer.ProducerMessage, err error) {
	defer func() {
		if pErr := recover(); pErr != nil {
			err = &PanicErrorMessage{Msg: msg, Inner: panicMessage(pErr), Stacktrace: debug.Stack()}
		}
	}()

	flowMessageSet, err = p.wrapped.Produce(msg, args)
	return flowMessageSet, err
}

func (p *PanicProducerWrapper) Close() {
	p.wrapped.Close()
}

func (p *PanicProducerWrapper) Commit(flowMessageSet []producer.ProducerMessage) {
	p.wrapped.Commit(flowMessageSet)
}

// WrapPanicProducer returns a producer turning panics into *PanicErrorMessage errors.
func WrapPanicProducer(wrapped producer.ProducerInterface) producer.ProducerInterface {
	return &PanicProducerWrapper{
		wrapped: wrapped,
	}
}
