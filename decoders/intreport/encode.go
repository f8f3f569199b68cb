package intreport

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/netsampler/intflow/decoders/utils"
)

func (p *Packet) MarshalBinary() ([]byte, error) {
	return EncodeFrame(p)
}

// EncodeFrame serializes a packet including the outer headers.
// Zero lengths are derived from the content.
func EncodeFrame(packet *Packet) ([]byte, error) {
	if packet == nil {
		return nil, errors.New("intreport: nil packet")
	}
	report, err := EncodeReport(packet)
	if err != nil {
		return nil, err
	}

	outer := packet.Outer
	if outer == nil {
		outer = &OuterHeaders{}
	}
	ethernet := outer.Ethernet
	if ethernet.EtherType == 0 {
		ethernet.EtherType = EtherTypeIPv4
	}
	udp := outer.UDP
	if udp.Length == 0 {
		udp.Length = uint16(UDPHeaderLen + len(report))
	}
	ip := outer.IP
	if ip.Protocol == 0 {
		ip.Protocol = ProtoUDP
	}
	if ip.TotalLength == 0 {
		ip.TotalLength = uint16(IPv4HeaderLen) + udp.Length
	}

	buf := bytes.NewBuffer(make([]byte, 0, OuterHeadersLen+len(report)))
	if err := encodeEthernet(buf, &ethernet); err != nil {
		return nil, err
	}
	if err := encodeIPv4(buf, &ip); err != nil {
		return nil, err
	}
	if err := encodeUDP(buf, &udp); err != nil {
		return nil, err
	}
	buf.Write(report)
	return buf.Bytes(), nil
}

// EncodeReport serializes a packet starting at the telemetry report header.
func EncodeReport(packet *Packet) ([]byte, error) {
	if packet == nil {
		return nil, errors.New("intreport: nil packet")
	}
	md := packet.Metadata
	fields, hopLen := SelectedFields(md.MaskA(), md.MaskB())
	if md.HopMLen == 0 && len(packet.Hops) > 0 {
		md.HopMLen = uint8(hopLen / 4)
	}
	if len(packet.Hops) > 0 && int(md.HopMLen)*4 != hopLen {
		return nil, fmt.Errorf("intreport: hop length %d words does not match masks %04b/%04b", md.HopMLen, md.MaskA(), md.MaskB())
	}
	for i := range packet.Hops {
		if packet.Hops[i].Present != fields {
			return nil, fmt.Errorf("intreport: hop %d carries fields [%s], masks select [%s]", i, packet.Hops[i].Present, fields)
		}
	}

	stackLen := hopLen * len(packet.Hops)
	shim := packet.Shim
	if shim.Length == 0 {
		shim.Length = uint8(ShimWords + MetadataWords + stackLen/4)
	}
	if int(shim.Length) != ShimWords+MetadataWords+stackLen/4 {
		return nil, fmt.Errorf("intreport: shim length %d words does not match %d hops", shim.Length, len(packet.Hops))
	}

	innerEthernet := packet.InnerEthernet
	if innerEthernet.EtherType == 0 {
		innerEthernet.EtherType = EtherTypeIPv4
	}
	intLen := ShimHeaderLen + MetadataHeaderLen + stackLen + len(packet.Payload)
	innerUDP := packet.InnerUDP
	if innerUDP.Length == 0 {
		innerUDP.Length = uint16(UDPHeaderLen + intLen)
	}
	innerIP := packet.InnerIP
	if innerIP.TotalLength == 0 {
		innerIP.TotalLength = uint16(IPv4HeaderLen) + innerUDP.Length
	}

	buf := bytes.NewBuffer(make([]byte, 0, MinReportLen+stackLen+len(packet.Payload)))
	if err := encodeReportHeader(buf, &packet.Report); err != nil {
		return nil, err
	}
	if err := encodeEthernet(buf, &innerEthernet); err != nil {
		return nil, err
	}
	if err := encodeIPv4(buf, &innerIP); err != nil {
		return nil, err
	}
	if err := encodeUDP(buf, &innerUDP); err != nil {
		return nil, err
	}
	if err := encodeShim(buf, &shim); err != nil {
		return nil, err
	}
	if err := encodeMetadataHeader(buf, &md); err != nil {
		return nil, err
	}

	hop := make([]byte, hopLen)
	for i := range packet.Hops {
		var cursor int
		for j := range Catalog {
			f := &Catalog[j]
			if !fields.Has(f.ID) {
				continue
			}
			f.encode(hop[cursor:cursor+f.Width], &packet.Hops[i])
			cursor += f.Width
		}
		buf.Write(hop)
	}
	buf.Write(packet.Payload)
	return buf.Bytes(), nil
}

func encodeEthernet(buf *bytes.Buffer, h *EthernetHeader) error {
	if err := utils.WriteFixed(buf, h.DstMAC, 6); err != nil {
		return err
	}
	if err := utils.WriteFixed(buf, h.SrcMAC, 6); err != nil {
		return err
	}
	return utils.WriteU16(buf, h.EtherType)
}

func encodeIPv4(buf *bytes.Buffer, h *IPv4Header) error {
	versionIHL := h.VersionIHL
	if versionIHL == 0 {
		versionIHL = 0x45
	}
	if err := utils.WriteU8(buf, versionIHL); err != nil {
		return err
	}
	if err := utils.WriteU8(buf, h.TOS); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.TotalLength); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.Identification); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.FlagsFragment); err != nil {
		return err
	}
	if err := utils.WriteU8(buf, h.TTL); err != nil {
		return err
	}
	if err := utils.WriteU8(buf, h.Protocol); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.Checksum); err != nil {
		return err
	}
	if err := utils.WriteFixed(buf, h.SrcAddr, 4); err != nil {
		return err
	}
	return utils.WriteFixed(buf, h.DstAddr, 4)
}

func encodeUDP(buf *bytes.Buffer, h *UDPHeader) error {
	if err := utils.WriteU16(buf, h.SrcPort); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.DstPort); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.Length); err != nil {
		return err
	}
	return utils.WriteU16(buf, h.Checksum)
}

func encodeReportHeader(buf *bytes.Buffer, h *ReportHeader) error {
	word := uint32(h.Version&0xf)<<28 |
		uint32(h.Length&0xf)<<24 |
		uint32(h.NextProto&0x7)<<21 |
		uint32(h.ReplicationMarkers&0x3f)<<15 |
		uint32(h.HardwareID&0x3f)
	if h.Dropped {
		word |= 1 << 8
	}
	if h.Congested {
		word |= 1 << 7
	}
	if h.TrackedFlow {
		word |= 1 << 6
	}
	if err := utils.WriteU32(buf, word); err != nil {
		return err
	}
	if err := utils.WriteU32(buf, h.SwitchID); err != nil {
		return err
	}
	if err := utils.WriteU32(buf, h.SequenceNumber); err != nil {
		return err
	}
	return utils.WriteU32(buf, h.IngressTimestamp)
}

func encodeShim(buf *bytes.Buffer, h *ShimHeader) error {
	if err := utils.WriteU8(buf, h.Type); err != nil {
		return err
	}
	if err := utils.WriteU8(buf, h.Reserved); err != nil {
		return err
	}
	if err := utils.WriteU8(buf, h.Length); err != nil {
		return err
	}
	return utils.WriteU8(buf, h.DSCP<<2)
}

func encodeMetadataHeader(buf *bytes.Buffer, h *MetadataHeader) error {
	word := uint32(h.Version&0xf)<<28 |
		uint32(h.Replication&0x3)<<26 |
		uint32(h.HopMLen&0x1f)<<8 |
		uint32(h.RemainingHopCount)
	if h.Cumulative {
		word |= 1 << 25
	}
	if h.MaxHopExceeded {
		word |= 1 << 24
	}
	if h.MTUExceeded {
		word |= 1 << 23
	}
	if err := utils.WriteU32(buf, word); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, h.Instructions); err != nil {
		return err
	}
	return utils.WriteU16(buf, h.Reserved)
}
