// Package config gathers the collector settings from flags, an optional YAML
// file and INTFLOW_* environment variables.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/netsampler/intflow/decoders/intreport"
	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/state"
	"github.com/netsampler/intflow/transport"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddresses string `env:"LISTEN"`

	LogLevel string `env:"LOGLEVEL"`
	LogFmt   string `env:"LOGFMT"`

	Format    string `env:"FORMAT"`
	Transport string `env:"TRANSPORT"`

	DSCP           uint `env:"DSCP"`
	SinkQueueSize  int  `env:"SINK_QUEUE_SIZE"`
	MaxSequenceGap int  `env:"MAX_SEQUENCE_GAP"`

	SequenceState string `env:"STATE_SEQUENCE"`

	ErrCnt int           `env:"ERR_CNT"`
	ErrInt time.Duration `env:"ERR_INT"`

	Addr        string `env:"ADDR"`
	CatalogPath string `env:"CATALOG_PATH"`

	ConfigFile string
}

// BindFlags registers configuration flags and returns the Config they fill.
func BindFlags(fs *flag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.ListenAddresses, "listen", "int://:32766", "listen addresses (int://host:port, pcap:///path, iface://name)")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level")
	fs.StringVar(&cfg.LogFmt, "logfmt", "normal", "Log formatter (normal, json)")
	fs.StringVar(&cfg.Format, "format", "line", fmt.Sprintf("Choose the format (available: %s)", strings.Join(format.GetFormats(), ", ")))
	fs.StringVar(&cfg.Transport, "transport", "file", fmt.Sprintf("Choose the transport (available: %s)", strings.Join(transport.GetTransports(), ", ")))
	fs.UintVar(&cfg.DSCP, "int.dscp", intreport.DefaultDSCP, "DSCP marking INT traffic on the inner IP header")
	fs.IntVar(&cfg.SinkQueueSize, "sink.queue", 10000, "Points waiting for the transport before being dropped")
	fs.IntVar(&cfg.MaxSequenceGap, "int.seqreset", 1000, "Backward jump of a report sequence number considered a reset")
	fs.StringVar(&cfg.SequenceState, "state.sequence", "memory://", fmt.Sprintf("Report sequence state engine URL (available schemes: %s)", strings.Join(state.SupportedSchemes, ", ")))
	fs.IntVar(&cfg.ErrCnt, "err.cnt", 10, "Maximum errors per batch for muting")
	fs.DurationVar(&cfg.ErrInt, "err.int", time.Second*10, "Maximum errors interval for muting")
	fs.StringVar(&cfg.Addr, "addr", ":8080", "HTTP server address (empty to disable)")
	fs.StringVar(&cfg.CatalogPath, "catalog.path", "/catalog", "Per-hop field catalog endpoint")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML file of flag values")

	return cfg
}

// Load parses args into fs. Values come, by increasing priority, from the
// defaults, the YAML file, the environment and the command line.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if cfg.ConfigFile != "" {
		f, err := os.Open(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfg.ConfigFile, err)
		}
		values, err := LoadFile(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfg.ConfigFile, err)
		}
		if err := apply(fs, values, explicit); err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfg.ConfigFile, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "INTFLOW_"}); err != nil {
		return nil, err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return nil, err
		}
	}

	if cfg.DSCP > 0x3f {
		return nil, fmt.Errorf("dscp %d does not fit in 6 bits", cfg.DSCP)
	}
	return cfg, nil
}

// LoadFile reads a YAML document of flag names and values. Nested keys are joined with dots,
// so transport.influxdb.url can be written as a tree.
func LoadFile(r io.Reader) (map[string]string, error) {
	var doc map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}
	values := make(map[string]string)
	flatten("", doc, values)
	return values, nil
}

func flatten(prefix string, node map[string]interface{}, values map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch vt := v.(type) {
		case map[string]interface{}:
			flatten(key, vt, values)
		case []interface{}:
			items := make([]string, len(vt))
			for i, item := range vt {
				items[i] = fmt.Sprint(item)
			}
			values[key] = strings.Join(items, ",")
		case nil:
			values[key] = ""
		default:
			values[key] = fmt.Sprint(vt)
		}
	}
}

func apply(fs *flag.FlagSet, values map[string]string, explicit map[string]string) error {
	for name, value := range values {
		if _, ok := explicit[name]; ok {
			continue
		}
		if fs.Lookup(name) == nil {
			return fmt.Errorf("unknown flag %s", name)
		}
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
	}
	return nil
}
