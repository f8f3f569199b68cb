// Package synth generates telemetry reports, to exercise a collector
// without a P4 switch.
package synth

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/decoders/utils"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	Target   string        // host:port the reports are sent to
	Interval time.Duration // delay between two reports
	Count    int           // reports to send, 0 to run until cancelled
	Hops     int
	MaskA    uint8
	MaskB    uint8
	SwitchID uint32 // id of the reporting switch
	DSCP     uint8
}

var DefaultConfig = Config{
	Target:   "127.0.0.1:32766",
	Interval: time.Second,
	Hops:     3,
	MaskA:    0xf,
	MaskB:    0x1,
	SwitchID: 1,
	DSCP:     intreport.DefaultDSCP,
}

// NewPacket builds report seq of a flow crossing switches 1..hops.
// Hop latencies and queue depths drift with seq so that series are not flat.
func NewPacket(cfg *Config, seq uint32) *intreport.Packet {
	pkt := &intreport.Packet{
		Report: intreport.ReportHeader{
			Version:          1,
			Length:           4,
			HardwareID:       1,
			SwitchID:         cfg.SwitchID,
			SequenceNumber:   seq,
			IngressTimestamp: uint32(time.Now().UnixNano()),
		},
		InnerEthernet: intreport.EthernetHeader{
			DstMAC:    utils.MacAddress{0x02, 0, 0, 0, 0, 0x02},
			SrcMAC:    utils.MacAddress{0x02, 0, 0, 0, 0, 0x01},
			EtherType: intreport.EtherTypeIPv4,
		},
		InnerIP: intreport.IPv4Header{
			VersionIHL: 0x45,
			TOS:        cfg.DSCP << 2,
			TTL:        64,
			Protocol:   intreport.ProtoUDP,
			SrcAddr:    utils.IPAddress{10, 0, 1, 1},
			DstAddr:    utils.IPAddress{10, 0, 2, 2},
		},
		InnerUDP: intreport.UDPHeader{
			SrcPort: 5000,
			DstPort: 6000,
		},
		Shim: intreport.ShimHeader{
			Type: 1,
		},
		Metadata: intreport.MetadataHeader{
			Version:           1,
			RemainingHopCount: uint8(8 - cfg.Hops),
		},
	}
	pkt.Metadata.SetMasks(cfg.MaskA, cfg.MaskB)

	fields, _ := intreport.SelectedFields(cfg.MaskA, cfg.MaskB)
	drift := seq % 16
	// the stack is stored last hop first
	for i := cfg.Hops; i > 0; i-- {
		id := uint32(i)
		pkt.Hops = append(pkt.Hops, intreport.HopMetadata{
			Present:             fields,
			SwitchID:            id,
			L1IngressPortID:     uint16(id * 10),
			L1EgressPortID:      uint16(id*10 + 1),
			HopLatency:          100*id + drift,
			QueueID:             uint8(id),
			QueueOccupancy:      drift * id,
			IngressTimestamp:    1000*id + drift,
			EgressTimestamp:     1000*id + 100*id + drift,
			L2IngressPortID:     0x10000 + id,
			L2EgressPortID:      0x20000 + id,
			EgressTxUtilization: 10*id + drift,
		})
	}
	for i := range pkt.Hops {
		keepSelected(&pkt.Hops[i], fields)
	}
	return pkt
}

// keepSelected zeroes the values of fields a hop does not carry.
func keepSelected(hop *intreport.HopMetadata, fields intreport.FieldSet) {
	kept := intreport.HopMetadata{Present: fields}
	for _, id := range fields.Fields() {
		switch id {
		case intreport.FieldNodeID:
			kept.SwitchID = hop.SwitchID
		case intreport.FieldL1InterfaceIDs:
			kept.L1IngressPortID, kept.L1EgressPortID = hop.L1IngressPortID, hop.L1EgressPortID
		case intreport.FieldHopLatency:
			kept.HopLatency = hop.HopLatency
		case intreport.FieldQueueOccupancy:
			kept.QueueID, kept.QueueOccupancy = hop.QueueID, hop.QueueOccupancy
		case intreport.FieldIngressTimestamp:
			kept.IngressTimestamp = hop.IngressTimestamp
		case intreport.FieldEgressTimestamp:
			kept.EgressTimestamp = hop.EgressTimestamp
		case intreport.FieldL2InterfaceIDs:
			kept.L2IngressPortID, kept.L2EgressPortID = hop.L2IngressPortID, hop.L2EgressPortID
		case intreport.FieldEgressTxUtilization:
			kept.EgressTxUtilization = hop.EgressTxUtilization
		}
	}
	*hop = kept
}

// Run sends reports to cfg.Target until Count reports were sent or ctx is done.
func Run(ctx context.Context, cfg *Config, logger *log.Logger) error {
	if cfg.Hops < 0 || cfg.Hops > 8 {
		return fmt.Errorf("synth: %d hops out of range", cfg.Hops)
	}
	conn, err := net.Dial("udp", cfg.Target)
	if err != nil {
		return err
	}
	defer conn.Close()

	entry := logger.WithField("target", cfg.Target)
	entry.Info("sending synthetic reports")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for seq := uint32(1); cfg.Count == 0 || int(seq) <= cfg.Count; seq++ {
		data, err := intreport.EncodeReport(NewPacket(cfg, seq))
		if err != nil {
			return err
		}
		if _, err := conn.Write(data); err != nil {
			return err
		}
		entry.WithField("sequence", seq).Debug("sent report")

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
