package transport

import (
	"errors"
	"sync"
)

var ErrWriterClosed = errors.New("writer is closed")

// DropCallback is notified of messages a writer gave up on.
type DropCallback interface {
	Dropped(driver, reason string, count int)
}

type AsyncWriterConfig struct {
	QueueSize int
	OnDrop    DropCallback
}

type message struct {
	key  []byte
	data []byte
}

// AsyncWriter decouples the decoding workers from the sink. Send never blocks:
// when the queue is full the message is dropped and counted.
// A single goroutine forwards messages to the wrapped transport in order.
type AsyncWriter struct {
	wrapped *Transport
	queue   chan message
	errCh   chan error
	onDrop  DropCallback

	lock   sync.RWMutex
	closed bool
	done   chan struct{}

	stop      chan struct{}
	forwarder sync.WaitGroup
}

var _ TransportInterface = (*AsyncWriter)(nil)

func NewAsyncWriter(wrapped *Transport, cfg *AsyncWriterConfig) *AsyncWriter {
	queueSize := 10000
	var onDrop DropCallback
	if cfg != nil {
		if cfg.QueueSize > 0 {
			queueSize = cfg.QueueSize
		}
		onDrop = cfg.OnDrop
	}
	w := &AsyncWriter{
		wrapped: wrapped,
		queue:   make(chan message, queueSize),
		errCh:   make(chan error, 16),
		onDrop:  onDrop,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go w.run()
	if errs := wrapped.Errors(); errs != nil {
		w.forwarder.Add(1)
		go w.forward(errs)
	}
	return w
}

// forward relays the asynchronous errors of the driver (failed deliveries, failed flushes).
func (w *AsyncWriter) forward(errs <-chan error) {
	defer w.forwarder.Done()
	for {
		select {
		case <-w.stop:
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			select {
			case w.errCh <- err:
			default:
			}
		}
	}
}

// run counts a message as dropped when Send fails. Drivers that batch must
// report batch failures on their Errors channel instead of returning them.
func (w *AsyncWriter) run() {
	defer close(w.done)
	for msg := range w.queue {
		if err := w.wrapped.Send(msg.key, msg.data); err != nil {
			w.dropped("send_error", 1)
			select {
			case w.errCh <- err:
			default:
			}
		}
	}
}

// Name is the name of the wrapped transport.
func (w *AsyncWriter) Name() string {
	return w.wrapped.Name()
}

func (w *AsyncWriter) dropped(reason string, count int) {
	if w.onDrop != nil {
		w.onDrop.Dropped(w.wrapped.Name(), reason, count)
	}
}

// Send enqueues a copy-free reference to key and data; callers must not reuse them.
func (w *AsyncWriter) Send(key, data []byte) error {
	w.lock.RLock()
	defer w.lock.RUnlock()
	if w.closed {
		w.dropped("closed", 1)
		return ErrWriterClosed
	}
	select {
	case w.queue <- message{key, data}:
	default:
		w.dropped("queue_full", 1)
	}
	return nil
}

// Errors returns the send errors of the wrapped transport along with the ones
// the driver reports asynchronously. Errors are dropped when nobody reads them.
func (w *AsyncWriter) Errors() <-chan error {
	return w.errCh
}

// Close drains the queue then closes the wrapped transport.
func (w *AsyncWriter) Close() error {
	w.lock.Lock()
	if w.closed {
		w.lock.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.lock.Unlock()

	<-w.done
	err := w.wrapped.Close()
	close(w.stop)
	w.forwarder.Wait()
	return err
}
