// Package notice delivers user-facing action outcomes: to the terminal, and
// optionally to Slack or a generic webhook.
package notice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/metrics"
)

type Kind string

const (
	KindSuccess Kind = "SUCCESS"
	KindError   Kind = "ERROR"
)

// Notice is one outcome shown to the user.
type Notice struct {
	Kind    Kind
	Action  string
	Network string
	Message string
	Fields  map[string]string
}

type Notifier interface {
	Send(ctx context.Context, n Notice) error
}

// Multi fans a notice out to several notifiers. Identical error notices
// within the cooldown are delivered once; success notices always go out.
type Multi struct {
	notifiers []Notifier
	cooldown  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMulti(cooldown time.Duration, logger *slog.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{
		notifiers: notifiers,
		cooldown:  cooldown,
		logger:    logger.With("component", "notice"),
		lastSent:  make(map[string]time.Time),
	}
}

func cooldownKey(n Notice) string {
	return fmt.Sprintf("%s:%s:%s", n.Kind, n.Action, n.Message)
}

// Send delivers n to every notifier and returns the first delivery error.
func (m *Multi) Send(ctx context.Context, n Notice) error {
	if n.Kind == KindError && m.cooldown > 0 {
		key := cooldownKey(n)
		m.mu.Lock()
		if last, ok := m.lastSent[key]; ok && time.Since(last) < m.cooldown {
			m.mu.Unlock()
			m.logger.Debug("notice suppressed by cooldown", "key", key)
			for _, nt := range m.notifiers {
				metrics.NoticesCooldownSkipped.WithLabelValues(channelName(nt), string(n.Kind)).Inc()
			}
			return nil
		}
		m.lastSent[key] = time.Now()
		m.mu.Unlock()
	}

	var firstErr error
	for _, nt := range m.notifiers {
		if err := nt.Send(ctx, n); err != nil {
			m.logger.Warn("notice delivery failed",
				"channel", channelName(nt),
				"action", n.Action,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.NoticesSentTotal.WithLabelValues(channelName(nt), string(n.Kind)).Inc()
	}
	return firstErr
}

func channelName(n Notifier) string {
	switch n.(type) {
	case *Console:
		return "console"
	case *Slack:
		return "slack"
	case *Webhook:
		return "webhook"
	default:
		return "unknown"
	}
}

// Console writes the notice message as a single line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Send(_ context.Context, n Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, n.Message)
	return err
}

// Slack posts notices to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Send(ctx context.Context, n Notice) error {
	emoji := ":white_check_mark:"
	if n.Kind == KindError {
		emoji = ":warning:"
	}
	text := fmt.Sprintf("%s *[%s]* %s: %s", emoji, n.Network, n.Action, n.Message)
	for k, v := range n.Fields {
		text += fmt.Sprintf("\n- *%s*: %s", k, v)
	}
	return postJSON(ctx, s.client, s.webhookURL, map[string]string{"text": text}, "slack")
}

// Webhook posts notices as JSON to a generic endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Send(ctx context.Context, n Notice) error {
	payload := map[string]any{
		"kind":    string(n.Kind),
		"action":  n.Action,
		"network": n.Network,
		"message": n.Message,
		"fields":  n.Fields,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, payload, "webhook")
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, channel string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notice: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

// Noop discards notices.
type Noop struct{}

func (Noop) Send(context.Context, Notice) error { return nil }
