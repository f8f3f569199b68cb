package utils

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	reuseport "github.com/libp2p/go-reuseport"
)

var ErrAlreadyStarted = errors.New("receiver is already started")

type UDPReceiverConfig struct {
	Sockets   int
	Workers   int
	QueueSize int
	Blocking  bool

	ReceiverCallback ReceiverCallback
}

// UDPReceiver reads telemetry reports from UDP sockets sharing a port.
type UDPReceiver struct {
	*dispatcher
	ready chan bool

	workers int
	sockets int
}

var _ Receiver = (*UDPReceiver)(nil)

func NewUDPReceiver(cfg *UDPReceiverConfig) (*UDPReceiver, error) {
	r := &UDPReceiver{
		ready:   make(chan bool),
		sockets: 2,
		workers: 2,
	}

	queueSize := 1000000
	var blocking bool
	var cb ReceiverCallback
	if cfg != nil {
		if cfg.Sockets > 0 {
			r.sockets = cfg.Sockets
		}
		if cfg.Workers > 0 {
			r.workers = cfg.Workers
		}
		if cfg.QueueSize >= 0 {
			queueSize = cfg.QueueSize
		}
		blocking = cfg.Blocking
		cb = cfg.ReceiverCallback
	}
	if !blocking && queueSize == 0 {
		return nil, fmt.Errorf("non-blocking receiver requires a queue")
	}
	r.dispatcher = newDispatcher(queueSize, blocking, cb)
	close(r.ready)
	return r, nil
}

func (r *UDPReceiver) receive(addr string, port int, started chan error) error {
	pconn, err := reuseport.ListenPacket("udp", net.JoinHostPort(addr, fmt.Sprint(port)))
	started <- err
	if err != nil {
		return nil
	}

	q := make(chan bool)
	go func() {
		select {
		case <-q: // routine exited
		case <-r.q: // receiver stopped
		}
		pconn.Close()
	}()
	defer close(q)

	udpconn, ok := pconn.(*net.UDPConn)
	if !ok {
		return fmt.Errorf("unexpected connection type %T", pconn)
	}
	localAddr, _ := netip.ParseAddrPort(udpconn.LocalAddr().String())

	for {
		pkt := packetPool.Get().(*packet)
		pkt.buf = pkt.buf[:cap(pkt.buf)]
		size, src, err := udpconn.ReadFromUDPAddrPort(pkt.buf)
		if err != nil {
			packetPool.Put(pkt)
			return err
		}
		if size == 0 {
			packetPool.Put(pkt)
			continue
		}
		pkt.msg = Message{
			Src:      src,
			Dst:      localAddr,
			Payload:  pkt.buf[:size],
			Received: time.Now().UTC(),
		}
		if !r.enqueue(pkt) {
			return nil
		}
	}
}

func (r *UDPReceiver) receivers(sockets int, addr string, port int) error {
	for i := 0; i < sockets; i++ {
		r.wg.Add(1)
		started := make(chan error, 1)
		go func() {
			defer r.wg.Done()
			if err := r.receive(addr, port, started); err != nil {
				r.reportError(&ReceiverError{err})
			}
		}()
		if err := <-started; err != nil {
			return err
		}
	}
	return nil
}

// Start opens the sockets and the decoding workers.
func (r *UDPReceiver) Start(addr string, port int, decodeFunc DecoderFunc) error {
	select {
	case <-r.ready:
		r.ready = make(chan bool)
	default:
		return ErrAlreadyStarted
	}
	r.q = make(chan bool)

	r.decoders(r.workers, decodeFunc)
	if err := r.receivers(r.sockets, addr, port); err != nil {
		r.Stop()
		return err
	}
	return nil
}

// Stop closes the sockets and waits for the workers to finish.
func (r *UDPReceiver) Stop() error {
	select {
	case <-r.ready:
		return nil
	default:
	}
	r.stop()
	close(r.ready)
	return nil
}

type ReceiverError struct {
	Err error
}

func (e *ReceiverError) Error() string {
	return "receiver: " + e.Err.Error()
}

func (e *ReceiverError) Unwrap() error {
	return e.Err
}
