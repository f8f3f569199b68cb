package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SinkMetric counts points dropped on their way to the sink.
type SinkMetric struct{}

func NewSinkMetric() *SinkMetric {
	return &SinkMetric{}
}

func (s *SinkMetric) Dropped(driver, reason string, count int) {
	SinkDroppedPoints.With(
		prometheus.Labels{
			"driver": driver,
			"reason": reason,
		}).
		Add(float64(count))
}
