package utils

import (
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// frameAddresses extracts the outer IP and UDP endpoints of a captured frame.
// Missing layers leave the zero value.
func frameAddresses(data []byte) (src, dst netip.AddrPort) {
	frame := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	var srcIP, dstIP netip.Addr
	if ip, ok := frame.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		srcIP, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		dstIP, _ = netip.AddrFromSlice(ip.DstIP.To4())
	}
	var srcPort, dstPort uint16
	if udp, ok := frame.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		srcPort = uint16(udp.SrcPort)
		dstPort = uint16(udp.DstPort)
	}
	return netip.AddrPortFrom(srcIP, srcPort), netip.AddrPortFrom(dstIP, dstPort)
}
