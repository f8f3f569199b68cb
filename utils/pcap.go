package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetDataSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapReceiver replays a capture file through a decoder, in file order.
// Messages carry the capture timestamp of each frame.
type PcapReceiver struct {
	q     chan bool
	wg    *sync.WaitGroup
	errCh chan error
	done  chan struct{}

	stopOnce sync.Once
}

var _ Receiver = (*PcapReceiver)(nil)

func NewPcapReceiver() *PcapReceiver {
	return &PcapReceiver{
		q:     make(chan bool),
		wg:    &sync.WaitGroup{},
		errCh: make(chan error),
		done:  make(chan struct{}),
	}
}

func openCapture(r io.Reader) (packetDataSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if string(magic) == string(pcapngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// Start opens the file and replays it in the background.
func (r *PcapReceiver) Start(filename string, decodeFunc DecoderFunc) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	source, err := openCapture(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if source.LinkType() != layers.LinkTypeEthernet {
		file.Close()
		return fmt.Errorf("reading %s: unsupported link type %s", filename, source.LinkType())
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		defer file.Close()
		if err := r.replay(source, decodeFunc); err != nil {
			r.reportError(&ReceiverError{err})
		}
	}()
	return nil
}

func (r *PcapReceiver) replay(source packetDataSource, decodeFunc DecoderFunc) error {
	for {
		select {
		case <-r.q:
			return nil
		default:
		}

		data, ci, err := source.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		src, dst := frameAddresses(data)
		msg := &Message{
			Src:      src,
			Dst:      dst,
			Payload:  data,
			Received: ci.Timestamp.UTC(),
			Raw:      true,
		}
		if msg.Received.IsZero() {
			msg.Received = time.Now().UTC()
		}
		if err := decodeFunc(msg); err != nil {
			r.reportError(err)
		}
	}
}

func (r *PcapReceiver) reportError(err error) {
	select {
	case r.errCh <- err:
	case <-r.q:
	}
}

// Done is closed once the whole file was replayed.
func (r *PcapReceiver) Done() <-chan struct{} {
	return r.done
}

func (r *PcapReceiver) Errors() <-chan error {
	return r.errCh
}

func (r *PcapReceiver) Stop() error {
	r.stopOnce.Do(func() {
		close(r.q)
	})
	r.wg.Wait()
	return nil
}
