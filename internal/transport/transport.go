// Package transport carries view snapshots to processes that follow a
// session, over Redis Streams or an in-process stream.
package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// MessageTransport is an append-only JSON message stream.
type MessageTransport interface {
	// PublishJSON appends v to stream and returns the message ID.
	PublishJSON(ctx context.Context, stream string, v any) (string, error)
	// ReadJSON blocks until a message after lastID exists, decodes it into
	// dst and returns its ID. lastID "0" reads from the beginning.
	ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error)
	Close() error
}

const payloadField = "payload"

// streamPayload extracts the raw payload of a stream entry.
func streamPayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case fmt.Stringer:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("payload type %T not supported", v)
	}
}

// parseStreamOffset returns the millisecond part of a stream ID
// ("123-0" -> 123). Empty means 0; negative values clamp to 0.
func parseStreamOffset(id string) (int64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, nil
	}
	head, _, _ := strings.Cut(id, "-")
	if head == "" {
		head = id
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream offset %q: %w", id, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// validateStreamOffset accepts "", "N" or "N-M" with non-negative parts.
func validateStreamOffset(id string) error {
	if id == "" {
		return nil
	}
	head, tail, hasTail := strings.Cut(id, "-")
	if _, err := strconv.ParseUint(head, 10, 64); err != nil {
		return fmt.Errorf("invalid stream offset %q", id)
	}
	if hasTail {
		if _, err := strconv.ParseUint(tail, 10, 64); err != nil {
			return fmt.Errorf("invalid stream offset %q", id)
		}
	}
	return nil
}
