// Package intreport decodes In-band Network Telemetry reports mirrored by
// P4 switches: the UDP encapsulated Telemetry Report v1.0 header, the
// inner packet headers, the INT shim and metadata headers and the per-hop
// metadata stack.
package intreport

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/netsampler/intflow/decoders/utils"
)

var (
	// ErrNotINT marks a well-formed frame that does not carry an INT report.
	ErrNotINT = errors.New("not an INT report")
	// ErrMalformed marks a buffer too short for the headers it declares.
	ErrMalformed = errors.New("malformed report")
	// ErrInconsistentStack marks a metadata stack that cannot be split into hop records.
	ErrInconsistentStack = errors.New("inconsistent metadata stack")
)

type DecoderError struct {
	Err error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("INT %s", e.Err.Error())
}

func (e *DecoderError) Unwrap() error {
	return e.Err
}

// StackError carries the raw header values of a rejected metadata stack.
type StackError struct {
	StackLength int
	HopLength   int
	Expected    int // hop length implied by the instruction masks
	MaskA       uint8
	MaskB       uint8
}

func (e *StackError) Error() string {
	if e.Expected != e.HopLength && e.HopLength > 0 && e.StackLength%e.HopLength == 0 {
		return fmt.Sprintf("%s: hop length %d does not match masks %04b/%04b (%d bytes)",
			ErrInconsistentStack.Error(), e.HopLength, e.MaskA, e.MaskB, e.Expected)
	}
	return fmt.Sprintf("%s: stack length %d is not a multiple of hop length %d",
		ErrInconsistentStack.Error(), e.StackLength, e.HopLength)
}

func (e *StackError) Unwrap() error {
	return ErrInconsistentStack
}

type Options struct {
	// DSCP expected on the inner IP header of INT traffic.
	DSCP uint8
}

var DefaultOptions = Options{
	DSCP: DefaultDSCP,
}

// DecodeFrame decodes a full link-layer frame as captured on the collector interface.
func DecodeFrame(data []byte, packet *Packet, opts *Options) error {
	if len(data) < MinFrameLen {
		return &DecoderError{fmt.Errorf("%w: frame of %d bytes, need at least %d", ErrMalformed, len(data), MinFrameLen)}
	}
	payload := bytes.NewBuffer(data[:OuterHeadersLen])

	outer := &OuterHeaders{}
	if err := decodeEthernet(payload, &outer.Ethernet); err != nil {
		return &DecoderError{err}
	}
	if outer.Ethernet.EtherType != EtherTypeIPv4 {
		return &DecoderError{fmt.Errorf("%w: outer ethertype 0x%04x", ErrNotINT, outer.Ethernet.EtherType)}
	}
	if err := decodeIPv4(payload, &outer.IP); err != nil {
		return &DecoderError{err}
	}
	if outer.IP.Protocol != ProtoUDP {
		return &DecoderError{fmt.Errorf("%w: outer protocol %d", ErrNotINT, outer.IP.Protocol)}
	}
	if err := decodeUDP(payload, &outer.UDP); err != nil {
		return &DecoderError{err}
	}

	if err := DecodeReport(data[OuterHeadersLen:], packet, opts); err != nil {
		return err
	}
	packet.Outer = outer
	return nil
}

// DecodeReport decodes the payload of the outer UDP datagram, starting at
// the telemetry report header.
func DecodeReport(data []byte, packet *Packet, opts *Options) error {
	stack, err := DecodeEnvelope(data, packet, opts)
	if err != nil {
		return err
	}
	hops, err := DecodeStack(stack, &packet.Metadata)
	if err != nil {
		return &DecoderError{err}
	}
	packet.Hops = hops
	return nil
}

// DecodeEnvelope decodes every fixed header of a report and returns the metadata stack bytes.
// Hops is left untouched.
func DecodeEnvelope(data []byte, packet *Packet, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = &DefaultOptions
	}
	if len(data) < MinReportLen {
		return nil, &DecoderError{fmt.Errorf("%w: report of %d bytes, need at least %d", ErrMalformed, len(data), MinReportLen)}
	}
	payload := bytes.NewBuffer(data[:MinReportLen])

	if err := decodeReportHeader(payload, &packet.Report); err != nil {
		return nil, &DecoderError{err}
	}
	if err := decodeEthernet(payload, &packet.InnerEthernet); err != nil {
		return nil, &DecoderError{err}
	}
	if err := decodeIPv4(payload, &packet.InnerIP); err != nil {
		return nil, &DecoderError{err}
	}
	if packet.InnerEthernet.EtherType != EtherTypeIPv4 {
		return nil, &DecoderError{fmt.Errorf("%w: inner ethertype 0x%04x", ErrNotINT, packet.InnerEthernet.EtherType)}
	}
	if packet.InnerIP.DSCP() != opts.DSCP {
		return nil, &DecoderError{fmt.Errorf("%w: inner dscp 0x%02x", ErrNotINT, packet.InnerIP.DSCP())}
	}
	if packet.InnerIP.Protocol != ProtoUDP {
		return nil, &DecoderError{fmt.Errorf("%w: inner protocol %d", ErrNotINT, packet.InnerIP.Protocol)}
	}
	if err := decodeUDP(payload, &packet.InnerUDP); err != nil {
		return nil, &DecoderError{err}
	}
	if err := decodeShim(payload, &packet.Shim); err != nil {
		return nil, &DecoderError{err}
	}
	if err := decodeMetadataHeader(payload, &packet.Metadata); err != nil {
		return nil, &DecoderError{err}
	}

	if packet.Shim.Length < ShimWords+MetadataWords {
		return nil, &DecoderError{fmt.Errorf("%w: shim length %d words", ErrMalformed, packet.Shim.Length)}
	}
	stackLen := (int(packet.Shim.Length) - ShimWords - MetadataWords) * 4
	end := MinReportLen + stackLen
	if end > len(data) {
		return nil, &DecoderError{fmt.Errorf("%w: metadata stack of %d bytes exceeds report (%d bytes left)",
			ErrMalformed, stackLen, len(data)-MinReportLen)}
	}
	packet.Payload = data[end:]
	return data[MinReportLen:end], nil
}

// DecodeStack splits the metadata stack into hop records using the hop
// length and instruction masks of the metadata header.
// Hops are returned in storage order: the first one is the last switch the
// packet went through before the sink.
func DecodeStack(stack []byte, md *MetadataHeader) ([]HopMetadata, error) {
	hopLen := int(md.HopMLen) * 4
	maskA, maskB := md.MaskA(), md.MaskB()
	if len(stack) == 0 {
		return nil, nil
	}
	if hopLen == 0 || len(stack)%hopLen != 0 {
		return nil, &StackError{StackLength: len(stack), HopLength: hopLen, MaskA: maskA, MaskB: maskB}
	}
	fields, expected := SelectedFields(maskA, maskB)
	if expected != hopLen {
		return nil, &StackError{StackLength: len(stack), HopLength: hopLen, Expected: expected, MaskA: maskA, MaskB: maskB}
	}

	hopCount := len(stack) / hopLen
	hops := make([]HopMetadata, hopCount)
	for i := 0; i < hopCount; i++ {
		decodeHop(stack[i*hopLen:(i+1)*hopLen], fields, &hops[i])
	}
	return hops, nil
}

// decodeHop walks the catalog with a byte cursor; b must be exactly the length of fields.
func decodeHop(b []byte, fields FieldSet, hop *HopMetadata) {
	var cursor int
	for i := range Catalog {
		f := &Catalog[i]
		if !fields.Has(f.ID) {
			continue
		}
		f.decode(b[cursor:cursor+f.Width], hop)
		cursor += f.Width
	}
	hop.Present = fields
}

func decodeEthernet(payload *bytes.Buffer, h *EthernetHeader) error {
	h.DstMAC = make(utils.MacAddress, 6)
	h.SrcMAC = make(utils.MacAddress, 6)
	return utils.BinaryDecoder(payload, &h.DstMAC, &h.SrcMAC, &h.EtherType)
}

func decodeIPv4(payload *bytes.Buffer, h *IPv4Header) error {
	h.SrcAddr = make(utils.IPAddress, 4)
	h.DstAddr = make(utils.IPAddress, 4)
	return utils.BinaryDecoder(payload,
		&h.VersionIHL,
		&h.TOS,
		&h.TotalLength,
		&h.Identification,
		&h.FlagsFragment,
		&h.TTL,
		&h.Protocol,
		&h.Checksum,
		&h.SrcAddr,
		&h.DstAddr,
	)
}

func decodeUDP(payload *bytes.Buffer, h *UDPHeader) error {
	return utils.BinaryDecoder(payload, &h.SrcPort, &h.DstPort, &h.Length, &h.Checksum)
}

func decodeReportHeader(payload *bytes.Buffer, h *ReportHeader) error {
	var word uint32
	if err := utils.BinaryDecoder(payload, &word, &h.SwitchID, &h.SequenceNumber, &h.IngressTimestamp); err != nil {
		return err
	}
	h.Version = uint8(word >> 28)
	h.Length = uint8(word>>24) & 0xf
	h.NextProto = uint8(word>>21) & 0x7
	h.ReplicationMarkers = uint8(word>>15) & 0x3f
	h.Dropped = word&(1<<8) != 0
	h.Congested = word&(1<<7) != 0
	h.TrackedFlow = word&(1<<6) != 0
	h.HardwareID = uint8(word) & 0x3f
	return nil
}

func decodeShim(payload *bytes.Buffer, h *ShimHeader) error {
	var dscp uint8
	if err := utils.BinaryDecoder(payload, &h.Type, &h.Reserved, &h.Length, &dscp); err != nil {
		return err
	}
	h.DSCP = dscp >> 2
	return nil
}

func decodeMetadataHeader(payload *bytes.Buffer, h *MetadataHeader) error {
	var word uint32
	if err := utils.BinaryDecoder(payload, &word, &h.Instructions, &h.Reserved); err != nil {
		return err
	}
	h.Version = uint8(word >> 28)
	h.Replication = uint8(word>>26) & 0x3
	h.Cumulative = word&(1<<25) != 0
	h.MaxHopExceeded = word&(1<<24) != 0
	h.MTUExceeded = word&(1<<23) != 0
	h.HopMLen = uint8(word>>8) & 0x1f
	h.RemainingHopCount = uint8(word)
	return nil
}
