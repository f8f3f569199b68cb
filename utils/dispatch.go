package utils

import (
	"sync"
)

const maxFrameSize = 9000

type packet struct {
	msg Message
	buf []byte
}

var packetPool = sync.Pool{
	New: func() any {
		return &packet{
			buf: make([]byte, maxFrameSize),
		}
	},
}

// dispatcher fans messages out to decoding workers through a bounded queue.
type dispatcher struct {
	q        chan bool
	wg       *sync.WaitGroup
	dispatch chan *packet
	errCh    chan error // linked to receiver, never closed

	decodersCnt int
	blocking    bool

	cb ReceiverCallback
}

func newDispatcher(queueSize int, blocking bool, cb ReceiverCallback) *dispatcher {
	return &dispatcher{
		wg:       &sync.WaitGroup{},
		dispatch: make(chan *packet, queueSize),
		errCh:    make(chan error),
		blocking: blocking,
		cb:       cb,
	}
}

func (d *dispatcher) Errors() <-chan error {
	return d.errCh
}

func (d *dispatcher) reportError(err error) {
	select {
	case d.errCh <- err:
	case <-d.q:
	}
}

// enqueue hands a packet to the workers. It returns false when the receiver stopped.
// A full queue drops the packet unless the dispatcher is blocking.
func (d *dispatcher) enqueue(pkt *packet) bool {
	if d.blocking {
		select {
		case d.dispatch <- pkt:
		case <-d.q:
			packetPool.Put(pkt)
			return false
		}
		return true
	}
	select {
	case d.dispatch <- pkt:
	case <-d.q:
		packetPool.Put(pkt)
		return false
	default:
		if d.cb != nil {
			d.cb.Dropped(pkt.msg)
		}
		packetPool.Put(pkt)
	}
	return true
}

func (d *dispatcher) decoders(workers int, decodeFunc DecoderFunc) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		d.decodersCnt++
		go func() {
			defer d.wg.Done()
			for pkt := range d.dispatch {
				if pkt == nil {
					return
				}
				if decodeFunc != nil {
					if err := decodeFunc(&pkt.msg); err != nil {
						d.reportError(err)
					}
				}
				packetPool.Put(pkt)
			}
		}()
	}
}

func (d *dispatcher) stop() {
	select {
	case <-d.q:
	default:
		close(d.q)
	}
	for i := 0; i < d.decodersCnt; i++ {
		d.dispatch <- nil
	}
	d.decodersCnt = 0
	d.wg.Wait()
}
