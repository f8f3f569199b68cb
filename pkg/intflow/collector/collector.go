package collector

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/metrics"
	"github.com/netsampler/intflow/pkg/intflow/listen"
	"github.com/netsampler/intflow/producer"
	"github.com/netsampler/intflow/transport"
	"github.com/netsampler/intflow/utils"
	"github.com/netsampler/intflow/utils/debug"

	log "github.com/sirupsen/logrus"
)

// Config configures a Collector.
type Config struct {
	Listeners []listen.ListenerConfig
	Formatter format.FormatInterface
	Transport interface {
		transport.TransportInterface
		Errors() <-chan error
	}
	Producer producer.ProducerInterface
	Options  *intreport.Options
	ErrCnt   int
	ErrInt   time.Duration
	Logger   *log.Logger
}

// Collector manages receivers and report pipes.
type Collector struct {
	cfg    Config
	logger *log.Logger

	receivers []utils.Receiver
	pipes     []utils.FlowPipe
	replays   []*utils.PcapReceiver
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a Collector from config.
func New(cfg Config) (*Collector, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	return &Collector{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

func (c *Collector) startReceiver(listenCfg listen.ListenerConfig, decodeFunc utils.DecoderFunc) (utils.Receiver, error) {
	recvCfg := &utils.UDPReceiverConfig{
		Sockets:          listenCfg.NumSockets,
		Workers:          listenCfg.NumWorkers,
		QueueSize:        listenCfg.QueueSize,
		Blocking:         listenCfg.Blocking,
		ReceiverCallback: metrics.NewReceiverMetric(),
	}

	switch listenCfg.Scheme {
	case listen.SchemeINT:
		recv, err := utils.NewUDPReceiver(recvCfg)
		if err != nil {
			return nil, err
		}
		return recv, recv.Start(listenCfg.Hostname, listenCfg.Port, decodeFunc)
	case listen.SchemePcap:
		recv := utils.NewPcapReceiver()
		if err := recv.Start(listenCfg.Path, decodeFunc); err != nil {
			return nil, err
		}
		c.replays = append(c.replays, recv)
		return recv, nil
	case listen.SchemeIface:
		recv, err := utils.NewInterfaceReceiver(recvCfg)
		if err != nil {
			return nil, err
		}
		return recv, recv.Start(listenCfg.Path, decodeFunc)
	}
	return nil, fmt.Errorf("scheme does not exist: %s", listenCfg.Scheme)
}

// Start launches receivers and error handlers.
func (c *Collector) Start() error {
	c.stopCh = make(chan struct{})

	for _, listenCfg := range c.cfg.Listeners {
		logger := c.logger.WithFields(log.Fields{
			"listen":     listenCfg.String(),
			"count":      listenCfg.NumSockets,
			"workers":    listenCfg.NumWorkers,
			"blocking":   listenCfg.Blocking,
			"queue_size": listenCfg.QueueSize,
		})
		logger.Info("starting collection")

		p := utils.NewINTPipe(&utils.PipeConfig{
			Format:    c.cfg.Formatter,
			Transport: c.cfg.Transport,
			Producer:  c.cfg.Producer,
			Options:   c.cfg.Options,
		})

		decodeFunc := p.DecodeFlow
		decodeFunc = debug.PanicDecoderWrapper(decodeFunc)
		decodeFunc = metrics.PromDecoderWrapper(decodeFunc, listenCfg.Scheme)
		c.pipes = append(c.pipes, p)

		recv, err := c.startReceiver(listenCfg, decodeFunc)
		if err != nil {
			return fmt.Errorf("start %s: %w", listenCfg.String(), err)
		}
		c.receivers = append(c.receivers, recv)

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.receiverErrors(recv, logger)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.transportErrors()
	}()

	return nil
}

func (c *Collector) receiverErrors(recv utils.Receiver, logger *log.Entry) {
	bm := utils.NewBatchMute(c.cfg.ErrInt, c.cfg.ErrCnt)
	for {
		select {
		case <-c.stopCh:
			return
		case err := <-recv.Errors():
			if err == nil {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Info("closed receiver")
				continue
			} else if errors.Is(err, intreport.ErrNotINT) {
				// counted as skipped by the decoder metrics
				continue
			}

			bm.Report(logger, "receiver messages", func() {
				logReceiverError(logger, err)
			})
		}
	}
}

func logReceiverError(logger *log.Entry, err error) {
	entry := logger.WithError(err)
	var pipeErr *utils.PipeMessageError
	if errors.As(err, &pipeErr) {
		entry = entry.WithField("source", pipeErr.Message.Src.String())
	}

	var stackErr *intreport.StackError
	var pErrMsg *debug.PanicErrorMessage
	switch {
	case errors.As(err, &stackErr):
		entry.WithFields(log.Fields{
			"stack_length": stackErr.StackLength,
			"hop_length":   stackErr.HopLength,
			"mask_a":       fmt.Sprintf("%04b", stackErr.MaskA),
			"mask_b":       fmt.Sprintf("%04b", stackErr.MaskB),
		}).Debug("discarded report")
	case errors.Is(err, intreport.ErrMalformed):
		entry.Debug("discarded report")
	case errors.As(err, &pErrMsg):
		entry.WithFields(log.Fields{
			"message":    pErrMsg.Msg,
			"stacktrace": string(pErrMsg.Stacktrace),
		}).Error("intercepted panic")
	default:
		entry.Error("error")
	}
}

func (c *Collector) transportErrors() {
	transportErr := c.cfg.Transport.Errors()
	bm := utils.NewBatchMute(c.cfg.ErrInt, c.cfg.ErrCnt)

	for {
		select {
		case <-c.stopCh:
			return
		case err, ok := <-transportErr:
			if !ok || err == nil {
				return
			}
			entry := c.logger.WithField("transport", transportName(c.cfg.Transport))
			bm.Report(entry, "transport errors", func() {
				entry.WithError(err).Error("transport error")
			})
		}
	}
}

func transportName(t interface{}) string {
	if named, ok := t.(interface{ Name() string }); ok {
		return named.Name()
	}
	return ""
}

// Done is closed once every pcap replay has reached the end of its file.
// It never closes when a network listener is configured.
func (c *Collector) Done() <-chan struct{} {
	done := make(chan struct{})
	if len(c.replays) == 0 || len(c.replays) != len(c.receivers) {
		return done
	}
	go func() {
		for _, r := range c.replays {
			<-r.Done()
		}
		close(done)
	}()
	return done
}

// Stop stops receivers and pipes, then waits for goroutines.
func (c *Collector) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
	}

	for _, recv := range c.receivers {
		if err := recv.Stop(); err != nil {
			c.logger.WithError(err).Error("error stopping receiver")
		}
	}
	for _, pipe := range c.pipes {
		pipe.Close()
	}
	c.wg.Wait()
}
