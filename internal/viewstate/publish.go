package viewstate

import (
	"context"
	"log/slog"

	"github.com/phuchtq/iota-donation-platform/internal/metrics"
	"github.com/phuchtq/iota-donation-platform/internal/transport"
)

// Publisher forwards every view the store emits to a message stream.
type Publisher struct {
	store     *Store
	transport transport.MessageTransport
	stream    string
	backend   string
	logger    *slog.Logger
}

// NewPublisher builds a publisher; backend labels metrics ("memory", "redis").
func NewPublisher(store *Store, t transport.MessageTransport, stream, backend string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:     store,
		transport: t,
		stream:    stream,
		backend:   backend,
		logger:    logger.With("component", "view_publisher"),
	}
}

// Run publishes until ctx is done. Publish failures are logged and skipped.
func (p *Publisher) Run(ctx context.Context) error {
	views, cancel := p.store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case view, ok := <-views:
			if !ok {
				return nil
			}
			id, err := p.transport.PublishJSON(ctx, p.stream, view)
			if err != nil {
				metrics.SnapshotsPublished.WithLabelValues(p.backend, "error").Inc()
				p.logger.Warn("publish view failed", "sequence", view.Sequence, "error", err)
				continue
			}
			metrics.SnapshotsPublished.WithLabelValues(p.backend, "ok").Inc()
			p.logger.Debug("view published", "sequence", view.Sequence, "message_id", id)
		}
	}
}
