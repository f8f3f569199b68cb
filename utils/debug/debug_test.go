package debug

import (
	"errors"
	"testing"

	"github.com/netsampler/intflow/producer"
	"github.com/netsampler/intflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicDecoderWrapper(t *testing.T) {
	decode := PanicDecoderWrapper(func(msg interface{}) error {
		var hops []int
		_ = hops[3]
		return nil
	})
	msg := &utils.Message{Payload: []byte{1, 2}}
	err := decode(msg)
	require.ErrorIs(t, err, ErrPanic)

	var pErr *PanicErrorMessage
	require.True(t, errors.As(err, &pErr))
	assert.Contains(t, pErr.Inner, "index out of range")
	assert.NotEmpty(t, pErr.Stacktrace)

	copied, ok := pErr.Msg.(*utils.Message)
	require.True(t, ok)
	msg.Payload[0] = 9
	assert.Equal(t, []byte{1, 2}, copied.Payload)
}

type panicProducer struct{}

func (p *panicProducer) Produce(msg interface{}, args *producer.ProduceArgs) ([]producer.ProducerMessage, error) {
	panic("bad report")
}

func (p *panicProducer) Commit([]producer.ProducerMessage) {}

func (p *panicProducer) Close() {}

func TestPanicProducerWrapper(t *testing.T) {
	p := WrapPanicProducer(&panicProducer{})
	_, err := p.Produce(nil, &producer.ProduceArgs{})
	require.ErrorIs(t, err, ErrPanic)
	assert.Equal(t, "panic: bad report", err.Error())
	p.Close()
}
