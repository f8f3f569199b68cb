package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/netsampler/intflow/decoders/intreport"
	_ "github.com/netsampler/intflow/format/json"
	"github.com/netsampler/intflow/pkg/intflow/config"
	"github.com/netsampler/intflow/pkg/intflow/synth"
	"github.com/netsampler/intflow/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDriver struct {
	sent   chan []byte
	closed bool
}

func (d *countingDriver) Prepare() error { return nil }
func (d *countingDriver) Init() error    { return nil }
func (d *countingDriver) Close() error {
	d.closed = true
	return nil
}
func (d *countingDriver) Send(key, data []byte) error {
	d.sent <- data
	return nil
}

func TestRunReplay(t *testing.T) {
	driver := &countingDriver{sent: make(chan []byte, 16)}
	name := fmt.Sprintf("app-test-%d", time.Now().UnixNano())
	transport.RegisterTransportDriver(name, driver)

	frame, err := intreport.EncodeFrame(synth.NewPacket(&synth.DefaultConfig, 1))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "int.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(frame), Length: len(frame)}, frame))
	require.NoError(t, f.Close())

	cfg, err := config.Load(flag.NewFlagSet("intflow", flag.ContinueOnError), []string{
		"-listen", "pcap://" + path,
		"-format", "json",
		"-transport", name,
		"-addr", "",
		"-loglevel", "error",
	})
	require.NoError(t, err)

	a, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	// three hops with all group A fields and tx utilization: one flow point and three per hop
	assert.Len(t, driver.sent, 10)
	assert.True(t, driver.closed)
	assert.False(t, a.collecting.Load())
}
