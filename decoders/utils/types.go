package utils

import (
	"fmt"
	"net"
	"net/netip"
)

type MacAddress []byte // purely for the formatting purpose

func (s MacAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", net.HardwareAddr([]byte(s)).String())), nil
}

func (s MacAddress) String() string {
	return net.HardwareAddr([]byte(s)).String()
}

type IPAddress []byte // purely for the formatting purpose

func (s IPAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}

func (s IPAddress) String() string {
	return s.Addr().String()
}

// Addr converts the address, returning the zero netip.Addr when the length is invalid.
func (s IPAddress) Addr() netip.Addr {
	ip, _ := netip.AddrFromSlice([]byte(s))
	return ip
}
