package builder

import (
	"fmt"

	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/metrics"
	"github.com/netsampler/intflow/pkg/intflow/config"
	"github.com/netsampler/intflow/producer"
	"github.com/netsampler/intflow/state"
	"github.com/netsampler/intflow/transport"
	"github.com/netsampler/intflow/utils/debug"
)

// BuildFormatter resolves a formatter by name.
func BuildFormatter(name string) (format.FormatInterface, error) {
	formatter, err := format.FindFormat(name)
	if err != nil {
		return nil, fmt.Errorf("build formatter %s: %w", name, err)
	}
	return formatter, nil
}

// BuildTransport resolves a transport by name and puts it behind a bounded queue.
func BuildTransport(cfg *config.Config) (*transport.AsyncWriter, error) {
	t, err := transport.FindTransport(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("build transport %s: %w", cfg.Transport, err)
	}
	return transport.NewAsyncWriter(t, &transport.AsyncWriterConfig{
		QueueSize: cfg.SinkQueueSize,
		OnDrop:    metrics.NewSinkMetric(),
	}), nil
}

// BuildSequenceState opens the report sequence store.
func BuildSequenceState(cfg *config.Config) (state.State[string, int64], error) {
	s, err := state.NewSequenceState(cfg.SequenceState)
	if err != nil {
		return nil, fmt.Errorf("build sequence state %s: %w", cfg.SequenceState, err)
	}
	return s, nil
}

// BuildProducer returns the point producer wrapped with panic recovery and metrics.
func BuildProducer(cfg *config.Config, sequences producer.SequenceStore) producer.ProducerInterface {
	var flowProducer producer.ProducerInterface = &producer.INTProducer{}
	flowProducer = debug.WrapPanicProducer(flowProducer)
	tracker := producer.NewSequenceTrackerStore(sequences, cfg.MaxSequenceGap)
	return metrics.WrapPromProducerTracker(flowProducer, tracker)
}
