package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/chain/ratelimit"
)

const objectsByTypeQuery = `query ObjectsByType($type: String!) {
  objects(filter: { type: $type }) {
    nodes {
      address
      digest
      asMoveObject {
        contents {
          json
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// Indexer abstracts the type-filtered bulk object query for testing.
type Indexer interface {
	Objects(ctx context.Context, typeTag string) (*ObjectPage, error)
}

type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
}

func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		url:    url,
		logger: logger.With("component", "graphql"),
	}
}

// SetRateLimiter sets the rate limiter for this client.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// Objects returns the first page of objects whose type equals typeTag.
// Further pages are not requested.
func (c *Client) Objects(ctx context.Context, typeTag string) (*ObjectPage, error) {
	var data objectsData
	err := c.Do(ctx, objectsByTypeQuery, map[string]any{"type": typeTag}, &data)
	ratelimit.RecordRPCCall("indexer", "objects", err)
	if err != nil {
		return nil, fmt.Errorf("objects(%s): %w", typeTag, err)
	}

	if data.Objects.PageInfo.HasNextPage {
		c.logger.Warn("indexer result truncated, further pages not fetched",
			"type", typeTag,
			"nodes", len(data.Objects.Nodes),
		)
	}
	if data.Objects.Nodes == nil {
		data.Objects.Nodes = []ObjectNode{}
	}
	return &data.Objects, nil
}

// Do posts a GraphQL request and decodes the data member into out.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(Request{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp Response
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return Errors(gqlResp.Errors)
	}
	if out == nil || len(gqlResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}
