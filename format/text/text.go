package text

import (
	"fmt"

	"github.com/netsampler/intflow/format"
)

type TextDriver struct {
}

func (d *TextDriver) Prepare() error {
	return nil
}

func (d *TextDriver) Init() error {
	return nil
}

func (d *TextDriver) Format(data interface{}) ([]byte, []byte, error) {
	var key []byte
	if dataIf, ok := data.(interface{ Key() []byte }); ok {
		key = dataIf.Key()
	}
	if dataIf, ok := data.(interface{ MarshalText() ([]byte, error) }); ok {
		text, err := dataIf.MarshalText()
		return key, text, err
	}
	if dataIf, ok := data.(fmt.Stringer); ok {
		return key, []byte(dataIf.String()), nil
	}
	return nil, nil, format.ErrNoSerializer
}

func init() {
	d := &TextDriver{}
	format.RegisterFormatDriver("text", d)
}
