package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestULEB128(t *testing.T) {
	tests := []struct {
		in   uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ULEB128(nil, tt.in), "value %d", tt.in)
	}
}

func TestEncodeU64(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x2f, 0x68, 0x59, 0x00, 0x00, 0x00, 0x00}, EncodeU64(1_500_000_000))
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, EncodeU64(1))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, EncodeU64(^uint64(0)))
}

func TestEncodeString(t *testing.T) {
	assert.Equal(t, []byte{0x00}, EncodeString(""))
	assert.Equal(t, append([]byte{0x0a}, "Water Well"...), EncodeString("Water Well"))

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	enc := EncodeString(string(long))
	assert.Equal(t, []byte{0xc8, 0x01}, enc[:2])
	assert.Len(t, enc, 202)
}

func TestEncodeString_InvalidUTF8(t *testing.T) {
	enc := EncodeString("a\xffb")
	assert.Equal(t, append([]byte{0x05}, "a�b"...), enc)
}
