package intreport

import (
	"github.com/netsampler/intflow/decoders/utils"
)

// Values matched in the outer and inner headers.
const (
	EtherTypeIPv4 = 0x0800
	ProtoUDP      = 17

	// DSCP value reserved to mark INT-carrying traffic.
	DefaultDSCP = 0x17
)

// Fixed header sizes, in bytes.
const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	UDPHeaderLen      = 8
	ReportHeaderLen   = 16
	ShimHeaderLen     = 4
	MetadataHeaderLen = 8
)

// Sizes derived from the fixed headers. The shim length field counts 4-byte
// words and includes the shim and metadata headers themselves.
const (
	ShimWords     = ShimHeaderLen / 4
	MetadataWords = MetadataHeaderLen / 4

	// OuterHeadersLen is the Ethernet, IPv4 and UDP envelope of a report.
	OuterHeadersLen = EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen
	// MinReportLen covers the report header up to the end of the INT metadata header.
	MinReportLen = ReportHeaderLen + EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen + ShimHeaderLen + MetadataHeaderLen
	MinFrameLen  = OuterHeadersLen + MinReportLen
)

type EthernetHeader struct {
	DstMAC    utils.MacAddress
	SrcMAC    utils.MacAddress
	EtherType uint16
}

type IPv4Header struct {
	VersionIHL     uint8
	TOS            uint8
	TotalLength    uint16
	Identification uint16
	FlagsFragment  uint16
	TTL            uint8
	Protocol       uint8
	Checksum       uint16
	SrcAddr        utils.IPAddress
	DstAddr        utils.IPAddress
}

// DSCP returns the differentiated services bits of the type-of-service byte.
func (h *IPv4Header) DSCP() uint8 {
	return h.TOS >> 2
}

type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

// OuterHeaders are the collector-facing encapsulation, absent when the
// report was read from a UDP socket.
type OuterHeaders struct {
	Ethernet EthernetHeader
	IP       IPv4Header
	UDP      UDPHeader
}

// ReportHeader is the Telemetry Report v1.0 fixed header.
type ReportHeader struct {
	Version            uint8 // 4 bits
	Length             uint8 // 4 bits
	NextProto          uint8 // 3 bits
	ReplicationMarkers uint8 // 6 bits
	Dropped            bool
	Congested          bool
	TrackedFlow        bool
	HardwareID         uint8 // 6 bits
	SwitchID           uint32
	SequenceNumber     uint32
	IngressTimestamp   uint32
}

type ShimHeader struct {
	Type     uint8
	Reserved uint8
	Length   uint8 // 4-byte words covering shim, metadata header and stack
	DSCP     uint8 // 6 bits
}

type MetadataHeader struct {
	Version           uint8 // 4 bits
	Replication       uint8 // 2 bits
	Cumulative        bool
	MaxHopExceeded    bool
	MTUExceeded       bool
	HopMLen           uint8 // 5 bits, 4-byte words per hop
	RemainingHopCount uint8
	Instructions      uint16
	Reserved          uint16
}

// MaskA is the instruction nibble selecting group A fields (bits 0-3).
func (h *MetadataHeader) MaskA() uint8 {
	return uint8(h.Instructions>>12) & 0xf
}

// MaskB is the instruction nibble selecting group B fields (bits 4-7).
func (h *MetadataHeader) MaskB() uint8 {
	return uint8(h.Instructions>>8) & 0xf
}

// ReservedMasks returns instruction bits 8-11 and 12-15, which carry no field assignment.
func (h *MetadataHeader) ReservedMasks() (uint8, uint8) {
	return uint8(h.Instructions>>4) & 0xf, uint8(h.Instructions) & 0xf
}

// SetMasks replaces the group A and B nibbles, leaving the reserved nibbles untouched.
func (h *MetadataHeader) SetMasks(maskA, maskB uint8) {
	h.Instructions = h.Instructions&0x00ff | uint16(maskA&0xf)<<12 | uint16(maskB&0xf)<<8
}

// HopMetadata is the decoded sub-record of a single hop.
// Only fields flagged in Present carry meaning.
type HopMetadata struct {
	Present FieldSet

	SwitchID            uint32
	L1IngressPortID     uint16
	L1EgressPortID      uint16
	HopLatency          uint32
	QueueID             uint8
	QueueOccupancy      uint32 // 24 bits
	IngressTimestamp    uint32
	EgressTimestamp     uint32
	L2IngressPortID     uint32
	L2EgressPortID      uint32
	EgressTxUtilization uint32
}

// Has reports whether field was decoded for this hop.
func (h *HopMetadata) Has(field FieldID) bool {
	return h.Present.Has(field)
}

// Packet is a decoded telemetry report.
type Packet struct {
	Outer *OuterHeaders `json:",omitempty"`

	Report        ReportHeader
	InnerEthernet EthernetHeader
	InnerIP       IPv4Header
	InnerUDP      UDPHeader
	Shim          ShimHeader
	Metadata      MetadataHeader

	// Hops are ordered as stored: index 0 is the hop closest to the sink.
	Hops []HopMetadata

	// Payload is whatever follows the metadata stack (truncated original packet).
	Payload []byte `json:"-"`
}
