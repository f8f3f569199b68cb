package utils

import (
	"bytes"
	"encoding/binary"
)

func WriteU8(buf *bytes.Buffer, v uint8) error {
	return buf.WriteByte(v)
}

func WriteU16(buf *bytes.Buffer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

// WriteU24 writes the low 24 bits of v.
func WriteU24(buf *bytes.Buffer, v uint32) error {
	b := [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := buf.Write(b[:])
	return err
}

func WriteU32(buf *bytes.Buffer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

func WriteU64(buf *bytes.Buffer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

// WriteFixed writes b padded with zeroes or truncated to exactly n bytes.
func WriteFixed(buf *bytes.Buffer, b []byte, n int) error {
	out := make([]byte, n)
	copy(out, b)
	_, err := buf.Write(out)
	return err
}

// Uint24 reads a big-endian 24 bits integer from the first three bytes of b.
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutUint24 writes the low 24 bits of v into the first three bytes of b.
func PutUint24(b []byte, v uint32) {
	_ = b[2]
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
