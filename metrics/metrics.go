package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "intflow"
)

var (
	MetricTrafficBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "traffic_bytes_total",
			Help:      "Bytes received by the application.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "local_ip", "local_port", "type"},
	)
	MetricTrafficPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "traffic_packets_total",
			Help:      "Packets received by the application.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "local_ip", "local_port", "type"},
	)
	MetricPacketSizeSum = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "traffic_summary_size_bytes",
			Help:       "Summary of packet size.",
			Namespace:  NAMESPACE,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"remote_ip", "local_ip", "local_port", "type"},
	)
	MetricReceivedDroppedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "receiver_dropped_packets_total",
			Help:      "Packets dropped before decoding because the queue was full.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	MetricReceivedDroppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "receiver_dropped_bytes_total",
			Help:      "Bytes dropped before decoding because the queue was full.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	DecoderTime = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "summary_decoding_time_us",
			Help:       "Decoding time summary.",
			Namespace:  NAMESPACE,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"name"},
	)
	ReportsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "reports_skipped_total",
			Help:      "Frames received that do not carry an INT report.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip"},
	)
	ReportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "reports_errors_total",
			Help:      "Reports discarded, by error class.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "error"},
	)
	ReportStats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "reports_total",
			Help:      "Reports decoded.",
			Namespace: NAMESPACE,
		},
		[]string{"switch_id", "hardware_id"},
	)
	ReportHops = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "report_hops",
			Help:       "Summary of the number of hops in a report.",
			Namespace:  NAMESPACE,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"switch_id"},
	)
	ReportsMissing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "reports_missing",
			Help:      "Reports missing from sequence numbers since the switch was first seen.",
			Namespace: NAMESPACE,
		},
		[]string{"switch_id", "hardware_id"},
	)
	ReportSequenceResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "report_sequence_resets_total",
			Help:      "Sequence number resets detected.",
			Namespace: NAMESPACE,
		},
		[]string{"switch_id", "hardware_id"},
	)
	PointsProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "points_total",
			Help:      "Points produced, by measurement.",
			Namespace: NAMESPACE,
		},
		[]string{"measurement"},
	)
	SinkDroppedPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "sink_dropped_points_total",
			Help:      "Points the sink gave up on.",
			Namespace: NAMESPACE,
		},
		[]string{"driver", "reason"},
	)
	SinkWriteTime = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "sink_write_time_seconds",
			Help:       "Time spent writing a batch to the sink.",
			Namespace:  NAMESPACE,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"driver"},
	)
)

func init() {
	prometheus.MustRegister(MetricTrafficBytes)
	prometheus.MustRegister(MetricTrafficPackets)
	prometheus.MustRegister(MetricPacketSizeSum)
	prometheus.MustRegister(MetricReceivedDroppedPackets)
	prometheus.MustRegister(MetricReceivedDroppedBytes)

	prometheus.MustRegister(DecoderTime)
	prometheus.MustRegister(ReportsSkipped)
	prometheus.MustRegister(ReportErrors)
	prometheus.MustRegister(ReportStats)
	prometheus.MustRegister(ReportHops)
	prometheus.MustRegister(ReportsMissing)
	prometheus.MustRegister(ReportSequenceResets)
	prometheus.MustRegister(PointsProduced)

	prometheus.MustRegister(SinkDroppedPoints)
	prometheus.MustRegister(SinkWriteTime)
}
