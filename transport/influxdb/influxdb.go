// Package influxdb writes line protocol batches to the InfluxDB v2 HTTP API.
package influxdb

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/netsampler/intflow/metrics"
	"github.com/netsampler/intflow/transport"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const driverName = "influxdb"

// Config is read from flags, then overridden by INTFLOW_INFLUXDB_* environment variables.
type Config struct {
	URL           string        `env:"URL"`
	Token         string        `env:"TOKEN"`
	Organization  string        `env:"ORG"`
	Bucket        string        `env:"BUCKET"`
	Precision     string        `env:"PRECISION"`
	GZip          bool          `env:"GZIP"`
	TLSSkipVerify bool          `env:"SKIP_TLS_VERIFY"`
	LogErrors     bool          `env:"LOG_ERRORS"`
	BatchSize     int           `env:"BATCH_SIZE"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL"`
	MaxRetries    int           `env:"MAX_RETRIES"`
	RetryDelay    time.Duration `env:"RETRY_DELAY"`
	Timeout       time.Duration `env:"TIMEOUT"`
}

var DefaultConfig = Config{
	URL:           "http://localhost:8086",
	Bucket:        "int",
	Precision:     "ns",
	GZip:          true,
	LogErrors:     true,
	BatchSize:     1000,
	FlushInterval: time.Second,
	MaxRetries:    3,
	RetryDelay:    500 * time.Millisecond,
	Timeout:       10 * time.Second,
}

// PermanentError is a rejection retrying cannot fix.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("InfluxDB responded with status code %d: %s", e.StatusCode, e.Body)
}

type InfluxDbDriver struct {
	config   Config
	writeURL string
	client   *http.Client

	lock  *sync.Mutex
	batch *bytes.Buffer
	lines int

	errCh  chan error
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func (d *InfluxDbDriver) Prepare() error {
	d.config = DefaultConfig
	flag.StringVar(&d.config.URL, "transport.influxdb.url", d.config.URL, "InfluxDB URL including port")
	flag.StringVar(&d.config.Token, "transport.influxdb.token", d.config.Token, "InfluxDB API token (or INTFLOW_INFLUXDB_TOKEN)")
	flag.StringVar(&d.config.Organization, "transport.influxdb.organization", d.config.Organization, "InfluxDB organization containing bucket")
	flag.StringVar(&d.config.Bucket, "transport.influxdb.bucket", d.config.Bucket, "InfluxDB bucket used for writing")
	flag.StringVar(&d.config.Precision, "transport.influxdb.precision", d.config.Precision, "InfluxDB time precision (ns, us, ms, s), must match the line format")
	flag.BoolVar(&d.config.GZip, "transport.influxdb.gzip", d.config.GZip, "Use GZip compression")
	flag.BoolVar(&d.config.TLSSkipVerify, "transport.influxdb.skiptlsverify", d.config.TLSSkipVerify, "Insecure TLS skip verify")
	flag.BoolVar(&d.config.LogErrors, "transport.influxdb.log.errors", d.config.LogErrors, "Log InfluxDB write errors")
	flag.IntVar(&d.config.BatchSize, "transport.influxdb.batchsize", d.config.BatchSize, "Lines per write request")
	flag.DurationVar(&d.config.FlushInterval, "transport.influxdb.flushinterval", d.config.FlushInterval, "Maximum time a line waits before being written")
	flag.IntVar(&d.config.MaxRetries, "transport.influxdb.maxretries", d.config.MaxRetries, "Maximum number of retries for a failed write")
	flag.DurationVar(&d.config.RetryDelay, "transport.influxdb.retrydelay", d.config.RetryDelay, "Initial retry delay, doubled on every retry")
	flag.DurationVar(&d.config.Timeout, "transport.influxdb.timeout", d.config.Timeout, "HTTP request timeout")
	return nil
}

func (d *InfluxDbDriver) Init() error {
	if err := env.ParseWithOptions(&d.config, env.Options{Prefix: "INTFLOW_INFLUXDB_"}); err != nil {
		return err
	}
	return d.init()
}

// New returns a started driver, without flag or environment lookup.
func New(cfg Config) (*InfluxDbDriver, error) {
	d := &InfluxDbDriver{config: cfg}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *InfluxDbDriver) init() error {
	if d.config.Bucket == "" {
		return errors.New("missing bucket")
	}
	if d.config.Organization == "" {
		return errors.New("missing organization")
	}
	apiURL, err := url.Parse(d.config.URL)
	if err != nil || apiURL.Host == "" {
		return fmt.Errorf("invalid url %q", d.config.URL)
	}
	apiURL.Path = "/api/v2/write"
	q := apiURL.Query()
	q.Set("org", d.config.Organization)
	q.Set("bucket", d.config.Bucket)
	q.Set("precision", d.config.Precision)
	apiURL.RawQuery = q.Encode()
	d.writeURL = apiURL.String()

	if d.config.BatchSize <= 0 {
		d.config.BatchSize = DefaultConfig.BatchSize
	}
	if d.config.MaxRetries < 0 {
		d.config.MaxRetries = 0
	}

	d.client = &http.Client{
		Timeout: d.config.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: d.config.TLSSkipVerify,
			},
		},
	}
	d.lock = &sync.Mutex{}
	d.batch = &bytes.Buffer{}
	d.errCh = make(chan error, 16)
	d.wg = &sync.WaitGroup{}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	if d.config.FlushInterval > 0 {
		d.wg.Add(1)
		go d.flushLoop()
	}
	return nil
}

func (d *InfluxDbDriver) flushLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.Flush(); err != nil {
				d.reportError(err)
			}
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *InfluxDbDriver) reportError(err error) {
	select {
	case d.errCh <- err:
	default:
	}
}

// Send appends a line to the current batch and writes the batch once full.
func (d *InfluxDbDriver) Send(key, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	d.lock.Lock()
	d.batch.Write(data)
	d.batch.WriteByte('\n')
	d.lines++
	full := d.lines >= d.config.BatchSize
	d.lock.Unlock()

	// the batch is counted as dropped by Flush, the error only goes to Errors
	if full {
		if err := d.Flush(); err != nil {
			d.reportError(err)
		}
	}
	return nil
}

// Flush writes the current batch. A batch that still fails after the retries is dropped.
func (d *InfluxDbDriver) Flush() error {
	d.lock.Lock()
	if d.lines == 0 {
		d.lock.Unlock()
		return nil
	}
	payload := make([]byte, d.batch.Len())
	copy(payload, d.batch.Bytes())
	lines := d.lines
	d.batch.Reset()
	d.lines = 0
	d.lock.Unlock()

	timeTrackStart := time.Now()
	err := d.write(payload)
	metrics.SinkWriteTime.With(prometheus.Labels{"driver": driverName}).Observe(time.Since(timeTrackStart).Seconds())
	if err != nil {
		metrics.SinkDroppedPoints.With(prometheus.Labels{"driver": driverName, "reason": "write_error"}).Add(float64(lines))
		if d.config.LogErrors {
			log.WithFields(log.Fields{
				"lines": lines,
				"error": err,
			}).Error("dropping InfluxDB batch")
		}
		return err
	}
	return nil
}

func (d *InfluxDbDriver) write(payload []byte) error {
	if d.config.GZip {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(payload); err != nil {
			return fmt.Errorf("gzip failed: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("gzip failed: %w", err)
		}
		payload = buf.Bytes()
	}

	var lastErr error
	delay := d.config.RetryDelay
	for i := 0; i <= d.config.MaxRetries; i++ {
		if i > 0 {
			if !d.sleep(delay) {
				return lastErr
			}
			delay *= 2
		}
		lastErr = d.post(payload)
		if lastErr == nil {
			return nil
		}
		var permanent *PermanentError
		if errors.As(lastErr, &permanent) {
			return lastErr
		}
		if d.config.LogErrors {
			log.WithFields(log.Fields{
				"attempt": i + 1,
				"error":   lastErr,
			}).Warn("error writing to InfluxDB")
		}
	}
	return lastErr
}

// sleep waits for the retry delay. It returns false when the driver is closing.
func (d *InfluxDbDriver) sleep(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *InfluxDbDriver) post(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, d.writeURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if d.config.Token != "" {
		req.Header.Set("Authorization", "Token "+d.config.Token)
	}
	if d.config.GZip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("InfluxDB responded with status code %d: %s", resp.StatusCode, body)
	}
	return &PermanentError{StatusCode: resp.StatusCode, Body: string(body)}
}

func (d *InfluxDbDriver) Errors() <-chan error {
	return d.errCh
}

// Close writes the last batch and stops the flush loop.
func (d *InfluxDbDriver) Close() error {
	if d.cancel == nil {
		return nil
	}
	err := d.Flush()
	d.cancel()
	d.wg.Wait()
	return err
}

func init() {
	d := &InfluxDbDriver{}
	transport.RegisterTransportDriver(driverName, d)
}
