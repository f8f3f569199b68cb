package json

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/netsampler/intflow/producer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoint() *producer.Point {
	return &producer.Point{
		Kind:   producer.KindHopLatency,
		Tags:   map[string]string{"switch_id": "3"},
		Fields: map[string]interface{}{"latency": int64(120)},
		Time:   time.Unix(10, 0).UTC(),
	}
}

func TestFormatNested(t *testing.T) {
	d := &JsonDriver{}
	_, out, err := d.Format(testPoint())
	require.NoError(t, err)
	assert.JSONEq(t, `{"measurement":"int_hop_latency","tags":{"switch_id":"3"},"fields":{"latency":120},"time":"1970-01-01T00:00:10Z"}`, string(out))
}

func TestFormatFlat(t *testing.T) {
	d := &JsonDriver{flat: true}
	_, out, err := d.Format(testPoint())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, map[string]interface{}{
		"measurement": "int_hop_latency",
		"switch_id":   "3",
		"latency":     float64(120),
		"time":        "1970-01-01T00:00:10Z",
	}, doc)
}
