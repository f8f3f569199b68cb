// Package utils receives telemetry reports and runs them through the decoding pipe.
package utils

import (
	"net/netip"
	"time"
)

type DecoderFunc func(msg interface{}) error

// ReceiverCallback is notified of messages dropped before decoding.
type ReceiverCallback interface {
	Dropped(msg Message)
}

// Message is a unit of input handed to a decoder.
type Message struct {
	Src      netip.AddrPort
	Dst      netip.AddrPort
	Payload  []byte
	Received time.Time

	// Raw marks a full link-layer frame rather than the payload of a UDP datagram.
	Raw bool
}

// Receiver is the part of a receiver the collector supervises.
type Receiver interface {
	Errors() <-chan error
	Stop() error
}
