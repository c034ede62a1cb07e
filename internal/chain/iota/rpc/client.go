package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/chain/ratelimit"
)

// maxResponseBytes bounds a single JSON-RPC response body.
const maxResponseBytes = 8 << 20

// RPCClient abstracts the ledger JSON-RPC interface for testing.
type RPCClient interface {
	GetObject(ctx context.Context, objectID string, opts ObjectDataOptions) (*ObjectResponse, error)
	GetBalance(ctx context.Context, owner, coinType string) (*Balance, error)
}

// Client speaks JSON-RPC 2.0 over HTTP POST to a full node or a wallet
// bridge. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	url      string
	endpoint string
	nextID   atomic.Int64
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewClient creates a JSON-RPC client. endpoint labels RPC metrics
// ("fullnode", "wallet").
func NewClient(url, endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		url:      url,
		endpoint: endpoint,
		logger:   logger.With("component", "rpc", "endpoint", endpoint),
	}
}

func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// Call issues a single JSON-RPC request and returns the raw result. A
// JSON-RPC error object comes back as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	began := time.Now()
	result, err := c.call(ctx, method, params)
	ratelimit.RecordRPCCall(c.endpoint, method, err)
	c.logger.Debug("rpc call", "method", method, "elapsed_ms", time.Since(began).Milliseconds(), "error", err)
	return result, err
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      int(c.nextID.Add(1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	raw, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// post sends payload and returns the body of a 200 response. Other statuses
// become "http status N: body" errors, which classify reads back.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
