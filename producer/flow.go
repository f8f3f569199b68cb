package producer

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/netsampler/intflow/decoders/intreport"
)

// FlowKey is the inner 5-tuple of the packet that carried INT metadata.
type FlowKey struct {
	SrcAddr netip.Addr
	DstAddr netip.Addr
	Proto   uint8
	SrcPort uint16
	DstPort uint16
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", k.SrcAddr, k.SrcPort, k.DstAddr, k.DstPort, k.Proto)
}

// Tags returns the key as point tags.
func (k FlowKey) Tags() map[string]string {
	return map[string]string{
		"src_ip":   k.SrcAddr.String(),
		"dst_ip":   k.DstAddr.String(),
		"protocol": strconv.Itoa(int(k.Proto)),
		"src_port": strconv.Itoa(int(k.SrcPort)),
		"dst_port": strconv.Itoa(int(k.DstPort)),
	}
}

// FlowInfo is the per-report view of a flow path.
type FlowInfo struct {
	Key FlowKey

	// Switch and sequence of the report itself.
	ReportSwitchID uint32
	SequenceNumber uint32
	HardwareID     uint8

	HopCount int
	// Hops[0] is the hop next to the sink, the last one is next to the traffic source.
	Hops []intreport.HopMetadata

	// FlowLatency is the sum of the hop latencies present in the report.
	FlowLatency uint64
	HasLatency  bool
	// Path lists switch ids from source to sink, colon separated.
	Path string
}

// NewFlowInfo aggregates the hops of a decoded report.
// Hops missing a field are kept as they are; presence is not required to be uniform.
func NewFlowInfo(packet *intreport.Packet) *FlowInfo {
	flow := &FlowInfo{
		Key: FlowKey{
			SrcAddr: packet.InnerIP.SrcAddr.Addr(),
			DstAddr: packet.InnerIP.DstAddr.Addr(),
			Proto:   packet.InnerIP.Protocol,
			SrcPort: packet.InnerUDP.SrcPort,
			DstPort: packet.InnerUDP.DstPort,
		},
		ReportSwitchID: packet.Report.SwitchID,
		SequenceNumber: packet.Report.SequenceNumber,
		HardwareID:     packet.Report.HardwareID,
		HopCount:       len(packet.Hops),
		Hops:           packet.Hops,
	}
	for i := range flow.Hops {
		if flow.Hops[i].Has(intreport.FieldHopLatency) {
			flow.FlowLatency += uint64(flow.Hops[i].HopLatency)
			flow.HasLatency = true
		}
	}
	flow.Path = BuildPath(flow.Hops)
	return flow
}

// BuildPath reads switch ids from the last hop to the first one.
func BuildPath(hops []intreport.HopMetadata) string {
	ids := make([]string, 0, len(hops))
	for i := len(hops) - 1; i >= 0; i-- {
		if !hops[i].Has(intreport.FieldNodeID) {
			continue
		}
		ids = append(ids, strconv.FormatUint(uint64(hops[i].SwitchID), 10))
	}
	return strings.Join(ids, ":")
}
