// Package line renders points with the InfluxDB line protocol.
package line

import (
	"flag"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/producer"
)

var (
	measurementEscaper = strings.NewReplacer(`,`, `\,`, ` `, `\ `)
	keyEscaper         = strings.NewReplacer(`,`, `\,`, `=`, `\=`, ` `, `\ `)
	stringEscaper      = strings.NewReplacer(`"`, `\"`, `\`, `\\`)
)

// Precisions maps the precision names accepted by InfluxDB to their unit.
var Precisions = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
}

type LineDriver struct {
	precisionName string
	precision     time.Duration
}

func (d *LineDriver) Prepare() error {
	flag.StringVar(&d.precisionName, "format.line.precision", "ns", "Timestamp precision of the line protocol (ns, us, ms, s)")
	return nil
}

func (d *LineDriver) Init() error {
	precision, ok := Precisions[d.precisionName]
	if !ok {
		return fmt.Errorf("unknown precision %q", d.precisionName)
	}
	d.precision = precision
	return nil
}

func (d *LineDriver) Format(data interface{}) ([]byte, []byte, error) {
	point, ok := data.(*producer.Point)
	if !ok {
		return nil, nil, format.ErrNoSerializer
	}
	line, err := AppendPoint(nil, point, d.precision)
	return point.Key(), line, err
}

// AppendPoint appends the line protocol rendering of a point, without the trailing newline.
// Tags and fields are sorted by key.
func AppendPoint(b []byte, point *producer.Point, precision time.Duration) ([]byte, error) {
	if len(point.Fields) == 0 {
		return b, fmt.Errorf("point %s has no fields", point.Kind)
	}
	if precision <= 0 {
		precision = time.Nanosecond
	}
	b = append(b, measurementEscaper.Replace(point.Kind.String())...)

	tagKeys := make([]string, 0, len(point.Tags))
	for k := range point.Tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		v := point.Tags[k]
		if v == "" {
			continue
		}
		b = append(b, ',')
		b = append(b, keyEscaper.Replace(k)...)
		b = append(b, '=')
		b = append(b, keyEscaper.Replace(v)...)
	}

	fieldKeys := make([]string, 0, len(point.Fields))
	for k := range point.Fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	for i, k := range fieldKeys {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, ',')
		}
		b = append(b, keyEscaper.Replace(k)...)
		b = append(b, '=')
		var err error
		if b, err = appendFieldValue(b, point.Fields[k]); err != nil {
			return b, fmt.Errorf("field %s: %w", k, err)
		}
	}

	if !point.Time.IsZero() {
		b = append(b, ' ')
		b = strconv.AppendInt(b, point.Time.UnixNano()/int64(precision), 10)
	}
	return b, nil
}

func appendFieldValue(b []byte, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case int64:
		b = strconv.AppendInt(b, v, 10)
		return append(b, 'i'), nil
	case int:
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i'), nil
	case uint64:
		b = strconv.AppendUint(b, v, 10)
		return append(b, 'u'), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return b, fmt.Errorf("unsupported float %v", v)
		}
		return strconv.AppendFloat(b, v, 'f', -1, 64), nil
	case bool:
		return strconv.AppendBool(b, v), nil
	case string:
		b = append(b, '"')
		b = append(b, stringEscaper.Replace(v)...)
		return append(b, '"'), nil
	}
	return b, fmt.Errorf("unsupported type %T", value)
}

func init() {
	d := &LineDriver{}
	format.RegisterFormatDriver("line", d)
}
