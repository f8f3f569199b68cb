package intreport

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the packet without triggering MarshalText.
func (p *Packet) MarshalJSON() ([]byte, error) {
	return json.Marshal(*p) // this is a trick to avoid having the JSON marshaller defaults to MarshalText
}

// MarshalText formats a concise summary of the packet.
func (p *Packet) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("INT switch:%d seq:%d hops:%d masks:%04b/%04b",
		p.Report.SwitchID, p.Report.SequenceNumber, len(p.Hops), p.Metadata.MaskA(), p.Metadata.MaskB())), nil
}

func (s FieldSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
