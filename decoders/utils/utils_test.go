package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryDecoderIntegers(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 1, 2, 1, 2, 3, 4, 1, 2, 3, 4, 5, 6, 7, 8})
	var (
		u8  uint8
		u16 uint16
		u32 uint32
		u64 uint64
	)
	require.NoError(t, BinaryDecoder(buf, &u8, &u16, &u32, &u64))
	assert.Equal(t, uint8(1), u8)
	assert.Equal(t, uint16(0x102), u16)
	assert.Equal(t, uint32(0x1020304), u32)
	assert.Equal(t, uint64(0x102030405060708), u64)
	assert.Equal(t, 0, buf.Len())
}

func TestBinaryDecoderBytes(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xde, 0xad, 0xbe, 0xef, 10, 0, 0, 1})
	mac := make(MacAddress, 4)
	ip := make(IPAddress, 4)
	require.NoError(t, BinaryDecoder(buf, &mac, &ip))
	assert.Equal(t, MacAddress{0xde, 0xad, 0xbe, 0xef}, mac)
	assert.Equal(t, "10.0.0.1", ip.String())
}

func TestBinaryDecoderTruncated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	var dest uint32
	err := BinaryDecoder(buf, &dest)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestUint24(t *testing.T) {
	b := make([]byte, 3)
	PutUint24(b, 0xabcdef)
	assert.Equal(t, []byte{0xab, 0xcd, 0xef}, b)
	assert.Equal(t, uint32(0xabcdef), Uint24(b))

	var buf bytes.Buffer
	require.NoError(t, WriteU24(&buf, 0x01020304))
	assert.Equal(t, []byte{0x02, 0x03, 0x04}, buf.Bytes())
}
