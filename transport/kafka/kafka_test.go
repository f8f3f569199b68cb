package kafka

import (
	"testing"

	sarama "github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDriver() *KafkaDriver {
	return &KafkaDriver{
		kafkaSASL:        "none",
		kafkaTopic:       "int-points",
		kafkaVersion:     "2.8.0",
		kafkaMaxMsgBytes: 1000000,
	}
}

func TestBuildConfig(t *testing.T) {
	d := testDriver()
	d.kafkaHashing = true
	d.kafkaCompressionCodec = "Snappy"
	cfg, err := d.buildConfig(Credentials{})
	require.NoError(t, err)
	assert.Equal(t, sarama.CompressionSnappy, cfg.Producer.Compression)
	assert.True(t, cfg.Producer.Return.Errors)
	assert.False(t, cfg.Net.SASL.Enable)

	d.kafkaCompressionCodec = "brotli"
	_, err = d.buildConfig(Credentials{})
	assert.Error(t, err)
}

func TestBuildConfigSASL(t *testing.T) {
	d := testDriver()
	d.kafkaSASL = "scram-sha512"
	_, err := d.buildConfig(Credentials{})
	assert.Error(t, err)

	cfg, err := d.buildConfig(Credentials{User: "collector", Password: "pass"})
	require.NoError(t, err)
	assert.True(t, cfg.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), cfg.Net.SASL.Mechanism)
	client := cfg.Net.SASL.SCRAMClientGeneratorFunc()
	require.NoError(t, client.Begin("collector", "pass", ""))
	first, err := client.Step("")
	require.NoError(t, err)
	assert.Contains(t, first, "n=collector")
	assert.False(t, client.Done())

	d.kafkaSASL = "kerberos"
	_, err = d.buildConfig(Credentials{User: "collector"})
	assert.Error(t, err)
}

func TestBuildConfigVersion(t *testing.T) {
	d := testDriver()
	d.kafkaVersion = "not-a-version"
	_, err := d.buildConfig(Credentials{})
	assert.Error(t, err)
}
