package producer

import (
	"net/netip"
	"time"
)

// ProducerMessage is an element returned by a producer and handed to a formatter.
type ProducerMessage interface{}

type ProducerInterface interface {
	// Converts a decoded message into a list of output messages
	Produce(msg interface{}, args *ProduceArgs) ([]ProducerMessage, error)
	// Indicates to the producer the messages returned were processed
	Commit([]ProducerMessage)
	Close()
}

type ProduceArgs struct {
	Src netip.AddrPort
	Dst netip.AddrPort

	// TimeReceived is the capture timestamp of the frame.
	TimeReceived time.Time
}
