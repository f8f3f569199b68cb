package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(flag.NewFlagSet("intflow", flag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Equal(t, "int://:32766", cfg.ListenAddresses)
	assert.Equal(t, uint(0x17), cfg.DSCP)
	assert.Equal(t, "line", cfg.Format)
}

func TestLoadFile(t *testing.T) {
	values, err := LoadFile(strings.NewReader(`
listen: int://:9000
transport:
  influxdb:
    url: http://influx:8086
    batchsize: 500
err:
  int: 1s
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"listen":                       "int://:9000",
		"transport.influxdb.url":       "http://influx:8086",
		"transport.influxdb.batchsize": "500",
		"err.int":                      "1s",
	}, values)

	values, err = LoadFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: int://:9000\nloglevel: debug\naddr: :9090\nerr:\n  int: 2s\n"), 0600))
	t.Setenv("INTFLOW_LOGLEVEL", "warn")
	t.Setenv("INTFLOW_ADDR", ":7070")

	fs := flag.NewFlagSet("intflow", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-config", path, "-addr", ":6060"})
	require.NoError(t, err)

	assert.Equal(t, "int://:9000", cfg.ListenAddresses) // file
	assert.Equal(t, "warn", cfg.LogLevel)               // environment over file
	assert.Equal(t, ":6060", cfg.Addr)                  // command line over environment
	assert.Equal(t, 2*time.Second, cfg.ErrInt)
}

func TestLoadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown: 1\n"), 0600))
	_, err := Load(flag.NewFlagSet("intflow", flag.ContinueOnError), []string{"-config", path})
	assert.Error(t, err)

	_, err = Load(flag.NewFlagSet("intflow", flag.ContinueOnError), []string{"-int.dscp", "64"})
	assert.Error(t, err)
}
