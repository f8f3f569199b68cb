package intreport

import (
	"encoding/binary"
	"strings"

	"github.com/netsampler/intflow/decoders/utils"
)

type FieldID uint8

const (
	FieldNodeID FieldID = iota
	FieldL1InterfaceIDs
	FieldHopLatency
	FieldQueueOccupancy
	FieldIngressTimestamp
	FieldEgressTimestamp
	FieldL2InterfaceIDs
	FieldEgressTxUtilization

	fieldCount
)

type FieldGroup uint8

const (
	GroupA FieldGroup = iota
	GroupB
)

// FieldSet is a bitmap indexed by FieldID.
type FieldSet uint16

func (s FieldSet) Has(field FieldID) bool {
	return s&(1<<field) != 0
}

func (s FieldSet) With(field FieldID) FieldSet {
	return s | 1<<field
}

// Fields lists the members of the set in catalog order.
func (s FieldSet) Fields() []FieldID {
	var fields []FieldID
	for id := FieldID(0); id < fieldCount; id++ {
		if s.Has(id) {
			fields = append(fields, id)
		}
	}
	return fields
}

func (s FieldSet) String() string {
	names := make([]string, 0, fieldCount)
	for _, id := range s.Fields() {
		names = append(names, Catalog[id].Name)
	}
	return strings.Join(names, ",")
}

// Field describes one per-hop telemetry field: its position in the
// instruction masks, its wire width and how to move it in and out of a HopMetadata.
type Field struct {
	ID    FieldID
	Name  string
	Group FieldGroup
	Bit   uint8 // bit within the group nibble, most significant first
	Width int

	// AlwaysPresent fields are emitted by every hop whatever the mask says.
	AlwaysPresent bool

	decode func(b []byte, hop *HopMetadata)
	encode func(b []byte, hop *HopMetadata)
}

// Selected reports whether the field is part of a hop record for the given masks.
func (f *Field) Selected(maskA, maskB uint8) bool {
	if f.AlwaysPresent {
		return true
	}
	mask := maskA
	if f.Group == GroupB {
		mask = maskB
	}
	return mask&f.Bit != 0
}

// Catalog is indexed by FieldID and ordered as fields appear inside a hop record.
var Catalog = [fieldCount]Field{
	{
		ID: FieldNodeID, Name: "node_id", Group: GroupA, Bit: 0x8, Width: 4,
		AlwaysPresent: true,
		decode: func(b []byte, hop *HopMetadata) {
			hop.SwitchID = binary.BigEndian.Uint32(b)
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.SwitchID)
		},
	},
	{
		ID: FieldL1InterfaceIDs, Name: "l1_interface_ids", Group: GroupA, Bit: 0x4, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.L1IngressPortID = binary.BigEndian.Uint16(b)
			hop.L1EgressPortID = binary.BigEndian.Uint16(b[2:])
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint16(b, hop.L1IngressPortID)
			binary.BigEndian.PutUint16(b[2:], hop.L1EgressPortID)
		},
	},
	{
		ID: FieldHopLatency, Name: "hop_latency", Group: GroupA, Bit: 0x2, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.HopLatency = binary.BigEndian.Uint32(b)
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.HopLatency)
		},
	},
	{
		ID: FieldQueueOccupancy, Name: "queue_occupancy", Group: GroupA, Bit: 0x1, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.QueueID = b[0]
			hop.QueueOccupancy = utils.Uint24(b[1:])
		},
		encode: func(b []byte, hop *HopMetadata) {
			b[0] = hop.QueueID
			utils.PutUint24(b[1:], hop.QueueOccupancy)
		},
	},
	{
		ID: FieldIngressTimestamp, Name: "ingress_timestamp", Group: GroupB, Bit: 0x8, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.IngressTimestamp = binary.BigEndian.Uint32(b)
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.IngressTimestamp)
		},
	},
	{
		ID: FieldEgressTimestamp, Name: "egress_timestamp", Group: GroupB, Bit: 0x4, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.EgressTimestamp = binary.BigEndian.Uint32(b)
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.EgressTimestamp)
		},
	},
	{
		ID: FieldL2InterfaceIDs, Name: "l2_interface_ids", Group: GroupB, Bit: 0x2, Width: 8,
		decode: func(b []byte, hop *HopMetadata) {
			hop.L2IngressPortID = binary.BigEndian.Uint32(b)
			hop.L2EgressPortID = binary.BigEndian.Uint32(b[4:])
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.L2IngressPortID)
			binary.BigEndian.PutUint32(b[4:], hop.L2EgressPortID)
		},
	},
	{
		ID: FieldEgressTxUtilization, Name: "egress_tx_utilization", Group: GroupB, Bit: 0x1, Width: 4,
		decode: func(b []byte, hop *HopMetadata) {
			hop.EgressTxUtilization = binary.BigEndian.Uint32(b)
		},
		encode: func(b []byte, hop *HopMetadata) {
			binary.BigEndian.PutUint32(b, hop.EgressTxUtilization)
		},
	},
}

// SelectedFields returns the fields a hop carries for the masks and the
// resulting hop record length in bytes.
func SelectedFields(maskA, maskB uint8) (FieldSet, int) {
	var (
		set    FieldSet
		length int
	)
	for i := range Catalog {
		f := &Catalog[i]
		if f.Selected(maskA, maskB) {
			set = set.With(f.ID)
			length += f.Width
		}
	}
	return set, length
}
