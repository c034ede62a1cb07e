package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// InMemoryStream is a MessageTransport for a single process. IDs are
// "<n>-0" with n counting from 1 per stream. With maxLen > 0 each stream
// keeps only its newest maxLen entries; a reader behind the trimmed head
// continues at the oldest retained entry, as Redis XREAD does after MAXLEN.
type InMemoryStream struct {
	mu      sync.Mutex
	maxLen  int64
	streams map[string]*memStream
	notify  chan struct{}
}

type memStream struct {
	trimmed int64 // entries dropped from the head
	entries [][]byte
}

func NewInMemoryStream(maxLen int64) *InMemoryStream {
	return &InMemoryStream{
		maxLen:  maxLen,
		streams: make(map[string]*memStream),
		notify:  make(chan struct{}),
	}
}

func (s *InMemoryStream) PublishJSON(_ context.Context, stream string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	s.mu.Lock()
	ms, ok := s.streams[stream]
	if !ok {
		ms = &memStream{}
		s.streams[stream] = ms
	}
	ms.entries = append(ms.entries, payload)
	if over := int64(len(ms.entries)) - s.maxLen; s.maxLen > 0 && over > 0 {
		ms.entries = append([][]byte(nil), ms.entries[over:]...)
		ms.trimmed += over
	}
	id := ms.trimmed + int64(len(ms.entries))
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	return strconv.FormatInt(id, 10) + "-0", nil
}

func (s *InMemoryStream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	if err := validateStreamOffset(lastID); err != nil {
		return "", err
	}
	offset, err := parseStreamOffset(lastID)
	if err != nil {
		return "", err
	}

	for {
		s.mu.Lock()
		wait := s.notify
		if ms, ok := s.streams[stream]; ok {
			next := max(offset, ms.trimmed)
			if idx := next - ms.trimmed; idx < int64(len(ms.entries)) {
				payload := ms.entries[idx]
				s.mu.Unlock()
				if err := json.Unmarshal(payload, dst); err != nil {
					return "", fmt.Errorf("unmarshal message: %w", err)
				}
				return strconv.FormatInt(next+1, 10) + "-0", nil
			}
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wait:
		}
	}
}

// Len reports how many entries stream currently retains.
func (s *InMemoryStream) Len(stream string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ms, ok := s.streams[stream]; ok {
		return len(ms.entries)
	}
	return 0
}

// Close drops all messages.
func (s *InMemoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string]*memStream)
	return nil
}
