// Package decode turns vector<u8> payloads from indexed records into text.
//
// The indexer and the JSON-RPC node disagree on how vector<u8> fields are
// rendered: GraphQL returns base64 strings, the node returns arrays of
// numbers, and some projections are already plain text.
package decode

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"unicode/utf8"
)

var base64Charset = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// Decode returns the display text for a payload. It never fails: input that
// cannot be decoded is returned unchanged, and unsupported types yield "".
func Decode(v any) string {
	switch p := v.(type) {
	case string:
		return decodeString(p)
	case []byte:
		return bytesToText(p)
	case []int:
		b, ok := intsToBytes(p)
		if !ok {
			return ""
		}
		return bytesToText(b)
	case []any:
		b, ok := anysToBytes(p)
		if !ok {
			return ""
		}
		return bytesToText(b)
	default:
		return ""
	}
}

// DecodeJSON decodes a raw JSON field value.
func DecodeJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return Decode(v)
}

func decodeString(s string) string {
	if !base64Charset.MatchString(s) {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) {
		return s
	}
	return string(decoded)
}

// bytesToText decodes UTF-8, replacing invalid sequences with U+FFFD.
func bytesToText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string([]rune(string(b)))
}

func intsToBytes(values []int) ([]byte, bool) {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}

func anysToBytes(values []any) ([]byte, bool) {
	out := make([]byte, len(values))
	for i, v := range values {
		f, ok := v.(float64)
		if !ok || f < 0 || f > 255 || f != float64(int(f)) {
			return nil, false
		}
		out[i] = byte(f)
	}
	return out, true
}
