package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/netsampler/intflow/decoders/intreport"
	decoderutils "github.com/netsampler/intflow/decoders/utils"
	"github.com/netsampler/intflow/producer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureFormat struct{}

func (f *captureFormat) Format(data interface{}) ([]byte, []byte, error) {
	point := data.(*producer.Point)
	return point.Key(), []byte(point.String()), nil
}

type captureTransport struct {
	lines []string
	err   error
}

func (t *captureTransport) Send(key, data []byte) error {
	t.lines = append(t.lines, string(data))
	return t.err
}

func testReport(t *testing.T, tos uint8, hops int) []byte {
	t.Helper()
	fields, _ := intreport.SelectedFields(0x3, 0)
	packet := &intreport.Packet{
		Report: intreport.ReportHeader{Version: 1, SwitchID: 1, SequenceNumber: 1},
		InnerIP: intreport.IPv4Header{
			TOS:      tos,
			Protocol: intreport.ProtoUDP,
			SrcAddr:  decoderutils.IPAddress{10, 0, 0, 1},
			DstAddr:  decoderutils.IPAddress{10, 0, 0, 2},
		},
		InnerUDP: intreport.UDPHeader{SrcPort: 1000, DstPort: 2000},
		Metadata: intreport.MetadataHeader{Version: 1},
	}
	packet.Metadata.SetMasks(0x3, 0)
	for i := 0; i < hops; i++ {
		packet.Hops = append(packet.Hops, intreport.HopMetadata{
			Present:        fields,
			SwitchID:       uint32(i + 1),
			HopLatency:     10,
			QueueID:        1,
			QueueOccupancy: 5,
		})
	}
	data, err := intreport.EncodeReport(packet)
	require.NoError(t, err)
	return data
}

func TestINTPipe(t *testing.T) {
	tr := &captureTransport{}
	p := NewINTPipe(&PipeConfig{
		Format:    &captureFormat{},
		Transport: tr,
		Producer:  &producer.INTProducer{},
	})
	defer p.Close()

	err := p.DecodeFlow(&Message{
		Payload:  testReport(t, intreport.DefaultDSCP<<2, 2),
		Received: time.Unix(10, 0),
	})
	require.NoError(t, err)
	// flow latency, then hop latency and queue per hop
	require.Len(t, tr.lines, 5)
	assert.Contains(t, tr.lines[0], "int_flow_latency")
	assert.Contains(t, tr.lines[0], "path=2:1")
}

func TestINTPipeErrors(t *testing.T) {
	tr := &captureTransport{}
	p := NewINTPipe(&PipeConfig{
		Format:    &captureFormat{},
		Transport: tr,
		Producer:  &producer.INTProducer{},
	})

	err := p.DecodeFlow(&Message{Payload: testReport(t, 0, 1)})
	assert.ErrorIs(t, err, intreport.ErrNotINT)
	var pErr *PipeMessageError
	require.True(t, errors.As(err, &pErr))
	assert.Nil(t, pErr.Message.Payload)

	err = p.DecodeFlow(&Message{Payload: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, intreport.ErrMalformed)

	err = p.DecodeFlow(&Message{Payload: testReport(t, intreport.DefaultDSCP<<2, 1), Raw: true})
	assert.ErrorIs(t, err, intreport.ErrMalformed)

	assert.Empty(t, tr.lines)

	tr.err = errors.New("sink down")
	err = p.DecodeFlow(&Message{Payload: testReport(t, intreport.DefaultDSCP<<2, 1)})
	assert.EqualError(t, err, "sink down")

	assert.Error(t, p.DecodeFlow("not a message"))
}

func TestINTPipeCustomMarking(t *testing.T) {
	tr := &captureTransport{}
	p := NewINTPipe(&PipeConfig{
		Format:    &captureFormat{},
		Transport: tr,
		Producer:  &producer.INTProducer{},
		Options:   &intreport.Options{DSCP: 0x2e},
	})
	require.NoError(t, p.DecodeFlow(&Message{Payload: testReport(t, 0x2e<<2, 1)}))
	assert.NotEmpty(t, tr.lines)
}
