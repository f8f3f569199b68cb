// Package kafka produces formatted points to a Kafka topic.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	sarama "github.com/Shopify/sarama"
	"github.com/caarlos0/env/v11"
	"github.com/netsampler/intflow/metrics"
	"github.com/netsampler/intflow/transport"
	"github.com/prometheus/client_golang/prometheus"
)

const driverName = "kafka"

type KafkaDriver struct {
	kafkaTLS            bool
	kafkaSASL           string
	kafkaTopic          string
	kafkaSrv            string
	kafkaBrk            string
	kafkaMaxMsgBytes    int
	kafkaFlushBytes     int
	kafkaFlushFrequency time.Duration

	kafkaHashing          bool
	kafkaVersion          string
	kafkaCompressionCodec string

	producer sarama.AsyncProducer
	errCh    chan error

	q chan bool
}

// Credentials are only read from the environment.
type Credentials struct {
	User     string `env:"KAFKA_SASL_USER"`
	Password string `env:"KAFKA_SASL_PASS"`
}

type KafkaSASLAlgorithm string

const (
	KAFKA_SASL_NONE         KafkaSASLAlgorithm = "none"
	KAFKA_SASL_PLAIN        KafkaSASLAlgorithm = "plain"
	KAFKA_SASL_SCRAM_SHA256 KafkaSASLAlgorithm = "scram-sha256"
	KAFKA_SASL_SCRAM_SHA512 KafkaSASLAlgorithm = "scram-sha512"
)

var (
	compressionCodecs = map[string]sarama.CompressionCodec{
		strings.ToLower(sarama.CompressionNone.String()):   sarama.CompressionNone,
		strings.ToLower(sarama.CompressionGZIP.String()):   sarama.CompressionGZIP,
		strings.ToLower(sarama.CompressionSnappy.String()): sarama.CompressionSnappy,
		strings.ToLower(sarama.CompressionLZ4.String()):    sarama.CompressionLZ4,
		strings.ToLower(sarama.CompressionZSTD.String()):   sarama.CompressionZSTD,
	}

	saslAlgorithms = []KafkaSASLAlgorithm{
		KAFKA_SASL_NONE,
		KAFKA_SASL_PLAIN,
		KAFKA_SASL_SCRAM_SHA256,
		KAFKA_SASL_SCRAM_SHA512,
	}
)

func (d *KafkaDriver) Prepare() error {
	names := make([]string, len(saslAlgorithms))
	for i, algo := range saslAlgorithms {
		names[i] = string(algo)
	}

	flag.BoolVar(&d.kafkaTLS, "transport.kafka.tls", false, "Use TLS to connect to Kafka")
	flag.StringVar(&d.kafkaSASL, "transport.kafka.sasl", "none",
		fmt.Sprintf(
			"Use SASL to connect to Kafka, available settings: %s (INTFLOW_KAFKA_SASL_USER and INTFLOW_KAFKA_SASL_PASS need to be set)",
			strings.Join(names, ", ")))
	flag.StringVar(&d.kafkaTopic, "transport.kafka.topic", "int-points", "Kafka topic to produce to")
	flag.StringVar(&d.kafkaSrv, "transport.kafka.srv", "", "SRV record containing a list of Kafka brokers (or use brokers)")
	flag.StringVar(&d.kafkaBrk, "transport.kafka.brokers", "127.0.0.1:9092,[::1]:9092", "Kafka brokers list separated by commas")
	flag.IntVar(&d.kafkaMaxMsgBytes, "transport.kafka.maxmsgbytes", 1000000, "Kafka max message bytes")
	flag.IntVar(&d.kafkaFlushBytes, "transport.kafka.flushbytes", int(sarama.MaxRequestSize), "Kafka flush bytes")
	flag.DurationVar(&d.kafkaFlushFrequency, "transport.kafka.flushfreq", time.Second*5, "Kafka flush frequency")
	flag.BoolVar(&d.kafkaHashing, "transport.kafka.hashing", false, "Partition by flow key")
	flag.StringVar(&d.kafkaVersion, "transport.kafka.version", "2.8.0", "Kafka version")
	flag.StringVar(&d.kafkaCompressionCodec, "transport.kafka.compression", "", "Kafka default compression")
	return nil
}

// buildConfig translates the flags into a sarama configuration.
func (d *KafkaDriver) buildConfig(creds Credentials) (*sarama.Config, error) {
	kafkaConfigVersion, err := sarama.ParseKafkaVersion(d.kafkaVersion)
	if err != nil {
		return nil, err
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = kafkaConfigVersion
	kafkaConfig.Producer.Return.Successes = false
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.MaxMessageBytes = d.kafkaMaxMsgBytes
	kafkaConfig.Producer.Flush.Bytes = d.kafkaFlushBytes
	kafkaConfig.Producer.Flush.Frequency = d.kafkaFlushFrequency

	if d.kafkaCompressionCodec != "" {
		cc, ok := compressionCodecs[strings.ToLower(d.kafkaCompressionCodec)]
		if !ok {
			return nil, errors.New("compression codec does not exist")
		}
		kafkaConfig.Producer.Compression = cc
	}

	if d.kafkaTLS {
		rootCAs, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("error initializing TLS: %w", err)
		}
		kafkaConfig.Net.TLS.Enable = true
		kafkaConfig.Net.TLS.Config = &tls.Config{RootCAs: rootCAs}
	}

	if d.kafkaHashing {
		kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	}

	kafkaSASL := KafkaSASLAlgorithm(strings.ToLower(d.kafkaSASL))
	switch kafkaSASL {
	case "", KAFKA_SASL_NONE:
		return kafkaConfig, nil
	case KAFKA_SASL_PLAIN, KAFKA_SASL_SCRAM_SHA256, KAFKA_SASL_SCRAM_SHA512:
	default:
		return nil, errors.New("SASL algorithm does not exist")
	}

	kafkaConfig.Net.SASL.Enable = true
	kafkaConfig.Net.SASL.User = creds.User
	kafkaConfig.Net.SASL.Password = creds.Password
	if creds.User == "" && creds.Password == "" {
		return nil, errors.New("Kafka SASL credentials are missing from the environment")
	}

	switch kafkaSASL {
	case KAFKA_SASL_SCRAM_SHA512:
		kafkaConfig.Net.SASL.Handshake = true
		kafkaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
		kafkaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
	case KAFKA_SASL_SCRAM_SHA256:
		kafkaConfig.Net.SASL.Handshake = true
		kafkaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
		kafkaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
	}
	return kafkaConfig, nil
}

func (d *KafkaDriver) Init() error {
	var creds Credentials
	if err := env.ParseWithOptions(&creds, env.Options{Prefix: "INTFLOW_"}); err != nil {
		return err
	}
	kafkaConfig, err := d.buildConfig(creds)
	if err != nil {
		return err
	}

	var addrs []string
	if d.kafkaSrv != "" {
		addrs, err = GetServiceAddresses(d.kafkaSrv)
		if err != nil {
			return err
		}
	} else {
		addrs = strings.Split(d.kafkaBrk, ",")
	}

	kafkaProducer, err := sarama.NewAsyncProducer(addrs, kafkaConfig)
	if err != nil {
		return err
	}
	d.producer = kafkaProducer
	d.errCh = make(chan error, 16)
	d.q = make(chan bool)

	go func() {
		for {
			select {
			case msg, ok := <-kafkaProducer.Errors():
				if !ok {
					return
				}
				metrics.SinkDroppedPoints.With(prometheus.Labels{"driver": driverName, "reason": "write_error"}).Inc()
				select {
				case d.errCh <- msg:
				default:
				}
			case <-d.q:
				return
			}
		}
	}()
	return nil
}

func (d *KafkaDriver) Send(key, data []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: d.kafkaTopic,
		Value: sarama.ByteEncoder(data),
	}
	if d.kafkaHashing && len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	d.producer.Input() <- msg
	return nil
}

func (d *KafkaDriver) Errors() <-chan error {
	return d.errCh
}

func (d *KafkaDriver) Close() error {
	close(d.q)
	return d.producer.Close()
}

func GetServiceAddresses(srv string) (addrs []string, err error) {
	_, srvs, err := net.LookupSRV("", "", srv)
	if err != nil {
		return nil, fmt.Errorf("service discovery: %w", err)
	}
	for _, srv := range srvs {
		addrs = append(addrs, net.JoinHostPort(srv.Target, strconv.Itoa(int(srv.Port))))
	}
	return addrs, nil
}

func init() {
	d := &KafkaDriver{}
	transport.RegisterTransportDriver(driverName, d)
}
