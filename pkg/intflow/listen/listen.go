package listen

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	SchemeINT   = "int"
	SchemePcap  = "pcap"
	SchemeIface = "iface"
)

// ListenerConfig defines a parsed listen address.
type ListenerConfig struct {
	Scheme     string
	Hostname   string
	Port       int
	Path       string // capture file for pcap, interface name for iface
	NumSockets int
	NumWorkers int
	Blocking   bool
	QueueSize  int
}

func (c *ListenerConfig) String() string {
	switch c.Scheme {
	case SchemePcap, SchemeIface:
		return fmt.Sprintf("%s://%s", c.Scheme, c.Path)
	}
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Hostname, c.Port)
}

func queryUint(q url.Values, name string) (int, bool, error) {
	if !q.Has(name) {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(q.Get(name), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("error parsing %s in URL: %w", name, err)
	}
	return int(v), true, nil
}

// ParseListenAddresses parses a comma-separated list of listen URLs:
// int://host:port for UDP reports, pcap:///path/file.pcap to replay a capture
// and iface://eth0 to capture mirrored frames on an interface.
func ParseListenAddresses(addresses string) ([]ListenerConfig, error) {
	var cfgs []ListenerConfig
	for _, listenAddress := range strings.Split(addresses, ",") {
		listenAddress = strings.TrimSpace(listenAddress)
		if listenAddress == "" {
			continue
		}
		listenAddrURL, err := url.Parse(listenAddress)
		if err != nil {
			return nil, fmt.Errorf("parse listen address %q: %w", listenAddress, err)
		}
		q := listenAddrURL.Query()

		numSockets, _, err := queryUint(q, "count")
		if err != nil {
			return nil, err
		}
		if numSockets == 0 {
			numSockets = 1
		}

		numWorkers, _, err := queryUint(q, "workers")
		if err != nil {
			return nil, err
		}
		if numWorkers == 0 {
			numWorkers = numSockets * 2
		}

		var isBlocking bool
		if q.Has("blocking") {
			isBlocking, err = strconv.ParseBool(q.Get("blocking"))
			if err != nil {
				return nil, fmt.Errorf("error parsing blocking in URL: %w", err)
			}
		}

		queueSize, hasQueueSize, err := queryUint(q, "queue_size")
		if err != nil {
			return nil, err
		}
		if !hasQueueSize && !isBlocking {
			queueSize = 1000000
		}

		cfg := ListenerConfig{
			Scheme:     listenAddrURL.Scheme,
			NumSockets: numSockets,
			NumWorkers: numWorkers,
			Blocking:   isBlocking,
			QueueSize:  queueSize,
		}

		switch listenAddrURL.Scheme {
		case SchemeINT:
			port, err := strconv.ParseUint(listenAddrURL.Port(), 10, 16)
			if err != nil {
				return nil, fmt.Errorf("port could not be converted to integer: %s: %w", listenAddrURL.Port(), err)
			}
			cfg.Hostname = listenAddrURL.Hostname()
			cfg.Port = int(port)
		case SchemePcap:
			cfg.Path = listenAddrURL.Host + listenAddrURL.Path
			if cfg.Path == "" {
				return nil, fmt.Errorf("missing capture file in %q", listenAddress)
			}
		case SchemeIface:
			cfg.Path = listenAddrURL.Host
			if cfg.Path == "" {
				return nil, fmt.Errorf("missing interface name in %q", listenAddress)
			}
		default:
			return nil, fmt.Errorf("scheme does not exist: %s", listenAddrURL.Scheme)
		}

		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no listen address")
	}

	return cfgs, nil
}
