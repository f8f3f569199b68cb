package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/pkg/intflow/builder"
	"github.com/netsampler/intflow/pkg/intflow/collector"
	"github.com/netsampler/intflow/pkg/intflow/config"
	"github.com/netsampler/intflow/pkg/intflow/httpserver"
	"github.com/netsampler/intflow/pkg/intflow/listen"
	"github.com/netsampler/intflow/pkg/intflow/logging"
	"github.com/netsampler/intflow/producer"
	"github.com/netsampler/intflow/state"
	"github.com/netsampler/intflow/transport"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// App wires and runs the collector.
type App struct {
	cfg        *config.Config
	logger     *log.Logger
	collector  *collector.Collector
	transport  *transport.AsyncWriter
	producer   producer.ProducerInterface
	sequences  state.State[string, int64]
	server     *http.Server
	collecting atomic.Bool
	shutdown   sync.Once
}

// New constructs a new App from config.
func New(cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFmt)
	if err != nil {
		return nil, err
	}
	log.SetLevel(logger.GetLevel())
	log.SetFormatter(logger.Formatter)

	listeners, err := listen.ParseListenAddresses(cfg.ListenAddresses)
	if err != nil {
		return nil, err
	}
	formatter, err := builder.BuildFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}
	sequences, err := builder.BuildSequenceState(cfg)
	if err != nil {
		return nil, err
	}
	transporter, err := builder.BuildTransport(cfg)
	if err != nil {
		sequences.Close()
		return nil, err
	}
	flowProducer := builder.BuildProducer(cfg, sequences)

	coll, err := collector.New(collector.Config{
		Listeners: listeners,
		Formatter: formatter,
		Transport: transporter,
		Producer:  flowProducer,
		Options:   &intreport.Options{DSCP: uint8(cfg.DSCP)},
		ErrCnt:    cfg.ErrCnt,
		ErrInt:    cfg.ErrInt,
		Logger:    logger,
	})
	if err != nil {
		transporter.Close()
		sequences.Close()
		return nil, err
	}

	app := &App{
		cfg:       cfg,
		logger:    logger,
		collector: coll,
		transport: transporter,
		producer:  flowProducer,
		sequences: sequences,
	}

	if cfg.Addr != "" {
		mux := httpserver.New(httpserver.Config{
			Addr:        cfg.Addr,
			CatalogPath: cfg.CatalogPath,
		}, app.collecting.Load)
		app.server = &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 5,
		}
	}

	return app, nil
}

// Run starts the app and blocks until the context is cancelled, the HTTP
// server fails or every capture file has been replayed.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting intflow")
	if err := a.collector.Start(); err != nil {
		a.Shutdown(context.Background())
		return err
	}
	a.collecting.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	if a.server != nil {
		g.Go(func() error {
			err := a.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.logger.WithField("http", a.cfg.Addr).Info("closed HTTP server")
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.collector.Done():
			a.logger.Info("replay finished")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		a.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// Shutdown stops receivers, flushes the sink, and shuts down the HTTP server.
func (a *App) Shutdown(ctx context.Context) {
	a.shutdown.Do(func() {
		a.collecting.Store(false)

		a.collector.Stop()
		a.producer.Close()
		if err := a.transport.Close(); err != nil {
			a.logger.WithError(err).Error("error closing transport")
		}
		a.logger.Info("transporter closed")
		if err := a.sequences.Close(); err != nil {
			a.logger.WithError(err).Error("error closing sequence state")
		}

		if a.server == nil {
			return
		}
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("error shutting-down HTTP server")
		}
	})
}
