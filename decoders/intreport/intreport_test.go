package intreport

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/netsampler/intflow/decoders/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHop(fields FieldSet, n uint32) HopMetadata {
	hop := HopMetadata{Present: fields}
	if fields.Has(FieldNodeID) {
		hop.SwitchID = n
	}
	if fields.Has(FieldL1InterfaceIDs) {
		hop.L1IngressPortID = uint16(n * 10)
		hop.L1EgressPortID = uint16(n*10 + 1)
	}
	if fields.Has(FieldHopLatency) {
		hop.HopLatency = n * 100
	}
	if fields.Has(FieldQueueOccupancy) {
		hop.QueueID = uint8(n)
		hop.QueueOccupancy = 0xff0000 | n
	}
	if fields.Has(FieldIngressTimestamp) {
		hop.IngressTimestamp = 1000 + n
	}
	if fields.Has(FieldEgressTimestamp) {
		hop.EgressTimestamp = 2000 + n
	}
	if fields.Has(FieldL2InterfaceIDs) {
		hop.L2IngressPortID = 0x10000 + n
		hop.L2EgressPortID = 0x20000 + n
	}
	if fields.Has(FieldEgressTxUtilization) {
		hop.EgressTxUtilization = 50 + n
	}
	return hop
}

func testPacket(maskA, maskB uint8, hops int) *Packet {
	pkt := &Packet{
		Report: ReportHeader{
			Version:          1,
			Length:           4,
			HardwareID:       3,
			SwitchID:         100,
			SequenceNumber:   7,
			IngressTimestamp: 123456,
		},
		InnerEthernet: EthernetHeader{
			DstMAC:    utils.MacAddress{0, 0, 0, 0, 0, 2},
			SrcMAC:    utils.MacAddress{0, 0, 0, 0, 0, 1},
			EtherType: EtherTypeIPv4,
		},
		InnerIP: IPv4Header{
			VersionIHL: 0x45,
			TOS:        DefaultDSCP << 2,
			TTL:        64,
			Protocol:   ProtoUDP,
			SrcAddr:    utils.IPAddress{10, 0, 1, 1},
			DstAddr:    utils.IPAddress{10, 0, 2, 2},
		},
		InnerUDP: UDPHeader{
			SrcPort: 5000,
			DstPort: 6000,
		},
		Shim: ShimHeader{
			Type: 1,
			DSCP: 0x0a,
		},
		Metadata: MetadataHeader{
			Version:           1,
			RemainingHopCount: 5,
		},
	}
	pkt.Metadata.SetMasks(maskA, maskB)
	fields, _ := SelectedFields(maskA, maskB)
	for i := 0; i < hops; i++ {
		pkt.Hops = append(pkt.Hops, testHop(fields, uint32(i+1)))
	}
	return pkt
}

func TestDecodeReportHandBuilt(t *testing.T) {
	data := []byte{
		// telemetry report header
		0x14, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x0a,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x03, 0xe8,
		// inner ethernet
		0x00, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x00,
		// inner ipv4
		0x45, 0x5c, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
		0x40, 0x11, 0x00, 0x00,
		0x0a, 0x00, 0x00, 0x01,
		0x0a, 0x00, 0x00, 0x02,
		// inner udp
		0x13, 0x88, 0x17, 0x70, 0x00, 0x18, 0x00, 0x00,
		// shim
		0x01, 0x00, 0x06, 0x00,
		// metadata header
		0x10, 0x00, 0x03, 0x04,
		0xc1, 0x00, 0x00, 0x00,
		// hop 0
		0x00, 0x00, 0x00, 0x0a,
		0x00, 0x01, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x63,
	}

	var pkt Packet
	require.NoError(t, DecodeReport(data, &pkt, nil))
	assert.Nil(t, pkt.Outer)

	assert.Equal(t, uint8(1), pkt.Report.Version)
	assert.Equal(t, uint8(4), pkt.Report.Length)
	assert.Equal(t, uint8(1), pkt.Report.HardwareID)
	assert.Equal(t, uint32(10), pkt.Report.SwitchID)
	assert.Equal(t, uint32(1), pkt.Report.SequenceNumber)
	assert.Equal(t, uint32(1000), pkt.Report.IngressTimestamp)

	assert.Equal(t, "10.0.0.1", pkt.InnerIP.SrcAddr.String())
	assert.Equal(t, "10.0.0.2", pkt.InnerIP.DstAddr.String())
	assert.Equal(t, uint16(5000), pkt.InnerUDP.SrcPort)
	assert.Equal(t, uint16(6000), pkt.InnerUDP.DstPort)

	assert.Equal(t, uint8(6), pkt.Shim.Length)
	assert.Equal(t, uint8(3), pkt.Metadata.HopMLen)
	assert.Equal(t, uint8(4), pkt.Metadata.RemainingHopCount)
	assert.Equal(t, uint8(0xc), pkt.Metadata.MaskA())
	assert.Equal(t, uint8(0x1), pkt.Metadata.MaskB())

	require.Len(t, pkt.Hops, 1)
	hop := pkt.Hops[0]
	assert.Equal(t, []FieldID{FieldNodeID, FieldL1InterfaceIDs, FieldEgressTxUtilization}, hop.Present.Fields())
	assert.Equal(t, uint32(10), hop.SwitchID)
	assert.Equal(t, uint16(1), hop.L1IngressPortID)
	assert.Equal(t, uint16(2), hop.L1EgressPortID)
	assert.Equal(t, uint32(99), hop.EgressTxUtilization)
	assert.False(t, hop.Has(FieldHopLatency))
	assert.Empty(t, pkt.Payload)
}

func TestDecodeStackEveryMask(t *testing.T) {
	for maskA := uint8(0); maskA < 16; maskA++ {
		for maskB := uint8(0); maskB < 16; maskB++ {
			pkt := testPacket(maskA, maskB, 4)
			data, err := EncodeReport(pkt)
			require.NoError(t, err)

			var decoded Packet
			require.NoError(t, DecodeReport(data, &decoded, nil), "masks %04b/%04b", maskA, maskB)
			require.Len(t, decoded.Hops, 4)

			expected, _ := SelectedFields(maskA, maskB)
			for i, hop := range decoded.Hops {
				assert.Equal(t, expected, hop.Present, "masks %04b/%04b hop %d", maskA, maskB, i)
			}
			assert.Equal(t, pkt.Hops, decoded.Hops)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	pkt := testPacket(0xf, 0xf, 3)
	pkt.Payload = []byte{0xde, 0xad, 0xbe, 0xef}
	data, err := EncodeFrame(pkt)
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, DecodeFrame(data, &decoded, nil))
	assert.Equal(t, pkt.Report, decoded.Report)
	assert.Equal(t, pkt.InnerEthernet, decoded.InnerEthernet)
	assert.Equal(t, pkt.InnerIP.SrcAddr, decoded.InnerIP.SrcAddr)
	assert.Equal(t, pkt.InnerIP.DstAddr, decoded.InnerIP.DstAddr)
	assert.Equal(t, pkt.InnerUDP.SrcPort, decoded.InnerUDP.SrcPort)
	assert.Equal(t, pkt.Shim.DSCP, decoded.Shim.DSCP)
	assert.Equal(t, pkt.Hops, decoded.Hops)
	assert.Equal(t, pkt.Payload, decoded.Payload)

	again, err := EncodeFrame(&decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecodeIdempotent(t *testing.T) {
	data, err := EncodeFrame(testPacket(0x3, 0xc, 2))
	require.NoError(t, err)

	var first, second Packet
	require.NoError(t, DecodeFrame(data, &first, nil))
	require.NoError(t, DecodeFrame(data, &second, nil))
	assert.Equal(t, first, second)
}

func TestDecodeEmptyStack(t *testing.T) {
	pkt := testPacket(0x3, 0x0, 0)
	pkt.Metadata.RemainingHopCount = 0
	data, err := EncodeReport(pkt)
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, DecodeReport(data, &decoded, nil))
	assert.Equal(t, uint8(ShimWords+MetadataWords), decoded.Shim.Length)
	assert.Empty(t, decoded.Hops)
}

func TestDecodeMaskScenario(t *testing.T) {
	data, err := EncodeReport(testPacket(0x3, 0x0, 2))
	require.NoError(t, err)

	var pkt Packet
	require.NoError(t, DecodeReport(data, &pkt, nil))
	assert.Equal(t, uint8(3), pkt.Metadata.HopMLen)
	require.Len(t, pkt.Hops, 2)
	for i, hop := range pkt.Hops {
		assert.Equal(t, []FieldID{FieldNodeID, FieldHopLatency, FieldQueueOccupancy}, hop.Present.Fields())
		assert.False(t, hop.Has(FieldL1InterfaceIDs))
		assert.Equal(t, uint32(i+1), hop.SwitchID)
		assert.Equal(t, uint32(i+1)*100, hop.HopLatency)
		assert.Equal(t, uint8(i+1), hop.QueueID)
	}
}

func TestNodeIDIgnoresMaskBit(t *testing.T) {
	without, err := EncodeReport(testPacket(0x3, 0x0, 2))
	require.NoError(t, err)
	with, err := EncodeReport(testPacket(0xb, 0x0, 2))
	require.NoError(t, err)

	var a, b Packet
	require.NoError(t, DecodeReport(without, &a, nil))
	require.NoError(t, DecodeReport(with, &b, nil))
	assert.Equal(t, a.Hops, b.Hops)
	assert.Equal(t, a.Metadata.HopMLen, b.Metadata.HopMLen)
}

func TestDecodeReservedMasksIgnored(t *testing.T) {
	pkt := testPacket(0x2, 0x1, 2)
	pkt.Metadata.Instructions |= 0x00ff
	data, err := EncodeReport(pkt)
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, DecodeReport(data, &decoded, nil))
	r1, r2 := decoded.Metadata.ReservedMasks()
	assert.Equal(t, uint8(0xf), r1)
	assert.Equal(t, uint8(0xf), r2)
	assert.Equal(t, pkt.Hops, decoded.Hops)
}

func TestDecodeInconsistentStack(t *testing.T) {
	data, err := EncodeReport(testPacket(0x3, 0x0, 2))
	require.NoError(t, err)

	// one extra word in the declared shim length: 7 words of stack for 3 word hops
	data = append(data, 0, 0, 0, 0)
	data[ReportHeaderLen+EthernetHeaderLen+IPv4HeaderLen+UDPHeaderLen+2]++

	var pkt Packet
	err = DecodeReport(data, &pkt, nil)
	require.ErrorIs(t, err, ErrInconsistentStack)
	var stackErr *StackError
	require.ErrorAs(t, err, &stackErr)
	assert.Equal(t, 28, stackErr.StackLength)
	assert.Equal(t, 12, stackErr.HopLength)
	assert.Nil(t, pkt.Hops)
}

func TestDecodeHopLengthMismatch(t *testing.T) {
	pkt := testPacket(0x3, 0x0, 2)
	data, err := EncodeReport(pkt)
	require.NoError(t, err)

	// hop_ml of 2 words divides the 6 words stack but masks select 3 words
	offset := ReportHeaderLen + EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen + ShimHeaderLen + 2
	data[offset] = 2

	var decoded Packet
	err = DecodeReport(data, &decoded, nil)
	require.ErrorIs(t, err, ErrInconsistentStack)
	var stackErr *StackError
	require.ErrorAs(t, err, &stackErr)
	assert.Equal(t, 12, stackErr.Expected)
	assert.Nil(t, decoded.Hops)
}

func TestDecodeNotINT(t *testing.T) {
	pkt := testPacket(0x3, 0x0, 1)
	pkt.InnerIP.TOS = 0
	data, err := EncodeReport(pkt)
	require.NoError(t, err)

	var decoded Packet
	assert.ErrorIs(t, DecodeReport(data, &decoded, nil), ErrNotINT)

	pkt = testPacket(0x3, 0x0, 1)
	pkt.InnerIP.Protocol = 6
	data, err = EncodeReport(pkt)
	require.NoError(t, err)
	assert.ErrorIs(t, DecodeReport(data, &decoded, nil), ErrNotINT)

	// a custom marking accepts what the default rejects
	pkt = testPacket(0x3, 0x0, 1)
	pkt.InnerIP.TOS = 0x2e << 2
	data, err = EncodeReport(pkt)
	require.NoError(t, err)
	assert.ErrorIs(t, DecodeReport(data, &decoded, nil), ErrNotINT)
	assert.NoError(t, DecodeReport(data, &decoded, &Options{DSCP: 0x2e}))
}

func TestDecodeMalformed(t *testing.T) {
	var pkt Packet
	assert.ErrorIs(t, DecodeFrame(make([]byte, MinFrameLen-1), &pkt, nil), ErrMalformed)
	assert.ErrorIs(t, DecodeReport(make([]byte, 10), &pkt, nil), ErrMalformed)

	data, err := EncodeReport(testPacket(0x3, 0x0, 2))
	require.NoError(t, err)
	assert.ErrorIs(t, DecodeReport(data[:len(data)-4], &pkt, nil), ErrMalformed)

	data[ReportHeaderLen+EthernetHeaderLen+IPv4HeaderLen+UDPHeaderLen+2] = 2
	assert.ErrorIs(t, DecodeReport(data, &pkt, nil), ErrMalformed)
}

func TestDecodeFrameGopacket(t *testing.T) {
	report, err := EncodeReport(testPacket(0xf, 0x1, 3))
	require.NoError(t, err)

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{192, 0, 2, 1},
		DstIP:    net.IP{192, 0, 2, 10},
	}
	udp := &layers.UDP{
		SrcPort: 40000,
		DstPort: 32766,
	}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(report)))

	var pkt Packet
	require.NoError(t, DecodeFrame(buf.Bytes(), &pkt, nil))
	require.NotNil(t, pkt.Outer)
	assert.Equal(t, "02:00:00:00:00:01", pkt.Outer.Ethernet.SrcMAC.String())
	assert.Equal(t, "192.0.2.1", pkt.Outer.IP.SrcAddr.String())
	assert.Equal(t, "192.0.2.10", pkt.Outer.IP.DstAddr.String())
	assert.Equal(t, uint16(32766), pkt.Outer.UDP.DstPort)
	assert.Equal(t, uint16(UDPHeaderLen+len(report)), pkt.Outer.UDP.Length)
	assert.Len(t, pkt.Hops, 3)

	eth.EthernetType = layers.EthernetTypeIPv6
	buf = gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(make([]byte, MinFrameLen))))
	assert.ErrorIs(t, DecodeFrame(buf.Bytes(), &pkt, nil), ErrNotINT)
}

func TestEncodeRejectsMismatchedHop(t *testing.T) {
	pkt := testPacket(0x3, 0x0, 2)
	pkt.Hops[1].Present = pkt.Hops[1].Present.With(FieldL1InterfaceIDs)
	_, err := EncodeReport(pkt)
	assert.Error(t, err)
}
