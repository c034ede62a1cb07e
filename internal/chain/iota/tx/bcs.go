package tx

import (
	"encoding/binary"
	"unicode/utf8"
)

// ULEB128 appends the unsigned LEB128 encoding of v to dst.
func ULEB128(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// EncodeU64 returns the BCS encoding of v (8 bytes, little endian).
func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), v)
}

// EncodeBytes returns the BCS encoding of a vector<u8>: length prefix then
// the raw bytes.
func EncodeBytes(b []byte) []byte {
	out := ULEB128(make([]byte, 0, len(b)+2), uint64(len(b)))
	return append(out, b...)
}

// EncodeString returns the BCS encoding of a Move String. Invalid UTF-8 is
// replaced so the contract never sees a malformed string.
func EncodeString(s string) []byte {
	if !utf8.ValidString(s) {
		s = string([]rune(s))
	}
	return EncodeBytes([]byte(s))
}
