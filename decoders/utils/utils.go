package utils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated = errors.New("truncated data")
)

// BinaryDecoder reads big-endian values from payload into each destination in order.
// Destinations are pointers to fixed-size integers or byte slices.
func BinaryDecoder(payload *bytes.Buffer, dests ...interface{}) error {
	for _, dest := range dests {
		if err := BinaryRead(payload, dest); err != nil {
			return err
		}
	}
	return nil
}

// BinaryRead reads a single big-endian value.
// Common integer kinds avoid the reflection path of binary.Read.
func BinaryRead(payload *bytes.Buffer, dest interface{}) error {
	switch d := dest.(type) {
	case *uint8:
		b, err := next(payload, 1)
		if err != nil {
			return err
		}
		*d = b[0]
	case *uint16:
		b, err := next(payload, 2)
		if err != nil {
			return err
		}
		*d = binary.BigEndian.Uint16(b)
	case *uint32:
		b, err := next(payload, 4)
		if err != nil {
			return err
		}
		*d = binary.BigEndian.Uint32(b)
	case *uint64:
		b, err := next(payload, 8)
		if err != nil {
			return err
		}
		*d = binary.BigEndian.Uint64(b)
	case []byte:
		b, err := next(payload, len(d))
		if err != nil {
			return err
		}
		copy(d, b)
	case *MacAddress:
		b, err := next(payload, len(*d))
		if err != nil {
			return err
		}
		copy(*d, b)
	case *IPAddress:
		b, err := next(payload, len(*d))
		if err != nil {
			return err
		}
		copy(*d, b)
	default:
		if err := binary.Read(payload, binary.BigEndian, dest); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrTruncated
			}
			return err
		}
	}
	return nil
}

func next(payload *bytes.Buffer, n int) ([]byte, error) {
	if payload.Len() < n {
		return nil, fmt.Errorf("%w (need %d, got %d)", ErrTruncated, n, payload.Len())
	}
	return payload.Next(n), nil
}
