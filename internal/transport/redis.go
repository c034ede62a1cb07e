package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStream is a MessageTransport backed by Redis Streams.
type RedisStream struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStream connects to url. maxLen > 0 caps each stream
// approximately at that many entries.
func NewRedisStream(ctx context.Context, url string, maxLen int64) (*RedisStream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStream{client: client, maxLen: maxLen}, nil
}

func (s *RedisStream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: payload},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

func (s *RedisStream) ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error) {
	if err := validateStreamOffset(lastID); err != nil {
		return "", err
	}
	if lastID == "" {
		lastID = "0"
	}

	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   1,
		Block:   0,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xread %s: %w", stream, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", fmt.Errorf("xread %s: empty result", stream)
	}

	msg := res[0].Messages[0]
	payload, err := streamPayload(msg.Values[payloadField])
	if err != nil {
		return "", fmt.Errorf("message %s: %w", msg.ID, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return "", fmt.Errorf("unmarshal message %s: %w", msg.ID, err)
	}
	return msg.ID, nil
}

func (s *RedisStream) Close() error {
	return s.client.Close()
}
