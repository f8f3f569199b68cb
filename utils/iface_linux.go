//go:build linux

package utils

import (
	"time"

	"github.com/gopacket/gopacket/pcapgo"
)

// InterfaceReceiver captures frames from a network interface with an AF_PACKET socket.
type InterfaceReceiver struct {
	*dispatcher
	handle *pcapgo.EthernetHandle

	workers int
}

var _ Receiver = (*InterfaceReceiver)(nil)

func NewInterfaceReceiver(cfg *UDPReceiverConfig) (*InterfaceReceiver, error) {
	r := &InterfaceReceiver{workers: 2}
	queueSize := 1000000
	var blocking bool
	var cb ReceiverCallback
	if cfg != nil {
		if cfg.Workers > 0 {
			r.workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			queueSize = cfg.QueueSize
		}
		blocking = cfg.Blocking
		cb = cfg.ReceiverCallback
	}
	r.dispatcher = newDispatcher(queueSize, blocking, cb)
	return r, nil
}

func (r *InterfaceReceiver) Start(ifname string, decodeFunc DecoderFunc) error {
	handle, err := pcapgo.NewEthernetHandle(ifname)
	if err != nil {
		return err
	}
	r.handle = handle
	r.q = make(chan bool)
	r.decoders(r.workers, decodeFunc)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.capture(); err != nil {
			r.reportError(&ReceiverError{err})
		}
	}()
	return nil
}

func (r *InterfaceReceiver) capture() error {
	for {
		select {
		case <-r.q:
			return nil
		default:
		}
		data, ci, err := r.handle.ReadPacketData()
		if err != nil {
			select {
			case <-r.q:
				return nil
			default:
				return err
			}
		}
		pkt := packetPool.Get().(*packet)
		pkt.buf = append(pkt.buf[:0], data...)
		src, dst := frameAddresses(pkt.buf)
		received := ci.Timestamp
		if received.IsZero() {
			received = time.Now()
		}
		pkt.msg = Message{
			Src:      src,
			Dst:      dst,
			Payload:  pkt.buf,
			Received: received.UTC(),
			Raw:      true,
		}
		if !r.enqueue(pkt) {
			return nil
		}
	}
}

func (r *InterfaceReceiver) Stop() error {
	if r.handle == nil {
		return nil
	}
	select {
	case <-r.q:
		return nil
	default:
	}
	close(r.q)
	r.handle.Close()
	r.stop()
	return nil
}
