package producer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
)

type PointKind uint8

const (
	KindFlowLatency PointKind = iota
	KindHopLatency
	KindPortTxUtilization
	KindQueueOccupancy
)

var measurements = [...]string{
	KindFlowLatency:       "int_flow_latency",
	KindHopLatency:        "int_hop_latency",
	KindPortTxUtilization: "int_port_tx_utilization",
	KindQueueOccupancy:    "int_queue_occupancy",
}

// String returns the measurement name of the kind.
func (k PointKind) String() string {
	if int(k) < len(measurements) {
		return measurements[k]
	}
	return "unknown"
}

func (k PointKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Point is a time-series sample.
type Point struct {
	Kind   PointKind              `json:"measurement"`
	Tags   map[string]string      `json:"tags"`
	Fields map[string]interface{} `json:"fields"`
	Time   time.Time              `json:"time"`

	flowKey string
}

// Key is the flow the point belongs to, used for partitioning.
func (p *Point) Key() []byte {
	return []byte(p.flowKey)
}

func (p *Point) String() string {
	var b strings.Builder
	b.WriteString(p.Kind.String())
	writeSorted(&b, p.Tags)
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = fmt.Sprint(v)
	}
	writeSorted(&b, fields)
	if !p.Time.IsZero() {
		b.WriteString(" time=")
		b.WriteString(p.Time.UTC().Format(time.RFC3339Nano))
	}
	return b.String()
}

func writeSorted(b *strings.Builder, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%s", k, values[k])
	}
}

// Points maps a flow to its time-series samples. A point is only emitted
// for fields that were present in the report.
func Points(flow *FlowInfo, t time.Time) []*Point {
	flowKey := flow.Key.String()
	points := make([]*Point, 0, 1+3*len(flow.Hops))

	if flow.HasLatency {
		points = append(points, &Point{
			Kind: KindFlowLatency,
			Tags: flow.Key.Tags(),
			Fields: map[string]interface{}{
				"latency": int64(flow.FlowLatency),
				"path":    flow.Path,
				"hops":    int64(flow.HopCount),
			},
			Time:    t,
			flowKey: flowKey,
		})
	}

	for i := range flow.Hops {
		hop := &flow.Hops[i]
		switchID := strconv.FormatUint(uint64(hop.SwitchID), 10)

		if hop.Has(intreport.FieldHopLatency) {
			tags := flow.Key.Tags()
			tags["switch_id"] = switchID
			points = append(points, &Point{
				Kind: KindHopLatency,
				Tags: tags,
				Fields: map[string]interface{}{
					"latency": int64(hop.HopLatency),
				},
				Time:    t,
				flowKey: flowKey,
			})
		}

		if egress, ok := egressPort(hop); ok && hop.Has(intreport.FieldEgressTxUtilization) {
			points = append(points, &Point{
				Kind: KindPortTxUtilization,
				Tags: map[string]string{
					"switch_id":   switchID,
					"egress_port": strconv.FormatUint(uint64(egress), 10),
				},
				Fields: map[string]interface{}{
					"tx_utilization": int64(hop.EgressTxUtilization),
				},
				Time:    t,
				flowKey: flowKey,
			})
		}

		if hop.Has(intreport.FieldQueueOccupancy) {
			points = append(points, &Point{
				Kind: KindQueueOccupancy,
				Tags: map[string]string{
					"switch_id": switchID,
					"queue_id":  strconv.Itoa(int(hop.QueueID)),
				},
				Fields: map[string]interface{}{
					"occupancy": int64(hop.QueueOccupancy),
				},
				Time:    t,
				flowKey: flowKey,
			})
		}
	}
	return points
}

// egressPort prefers the level 1 egress interface and falls back to level 2.
func egressPort(hop *intreport.HopMetadata) (uint32, bool) {
	switch {
	case hop.Has(intreport.FieldL1InterfaceIDs):
		return uint32(hop.L1EgressPortID), true
	case hop.Has(intreport.FieldL2InterfaceIDs):
		return hop.L2EgressPortID, true
	}
	return 0, false
}
