// Package json renders points as JSON documents, nested by default or flat
// for consumers that index top-level keys.
package json

import (
	"encoding/json"
	"flag"

	"github.com/netsampler/intflow/format"
	"github.com/netsampler/intflow/producer"
)

type JsonDriver struct {
	flat bool
}

func (d *JsonDriver) Prepare() error {
	flag.BoolVar(&d.flat, "format.json.flat", false, "Merge point tags and fields into the top-level object")
	return nil
}

func (d *JsonDriver) Init() error {
	return nil
}

// flatten merges tags and fields of a point. Fields win over tags of the same name.
func flatten(point *producer.Point) map[string]interface{} {
	doc := make(map[string]interface{}, len(point.Tags)+len(point.Fields)+2)
	for k, v := range point.Tags {
		doc[k] = v
	}
	for k, v := range point.Fields {
		doc[k] = v
	}
	doc["measurement"] = point.Kind.String()
	doc["time"] = point.Time
	return doc
}

func (d *JsonDriver) Format(data interface{}) ([]byte, []byte, error) {
	var key []byte
	if dataIf, ok := data.(interface{ Key() []byte }); ok {
		key = dataIf.Key()
	}
	if point, ok := data.(*producer.Point); ok && d.flat {
		data = flatten(point)
	}
	output, err := json.Marshal(data)
	return key, output, err
}

func init() {
	d := &JsonDriver{}
	format.RegisterFormatDriver("json", d)
}
