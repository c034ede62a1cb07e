package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetObject returns an object by ID. A missing or deleted object is reported
// through ObjectResponse.Error, not as a call error.
func (c *Client) GetObject(ctx context.Context, objectID string, opts ObjectDataOptions) (*ObjectResponse, error) {
	params := []interface{}{objectID, opts}
	result, err := c.Call(ctx, "iota_getObject", params)
	if err != nil {
		return nil, fmt.Errorf("iota_getObject(%s): %w", objectID, err)
	}

	var obj ObjectResponse
	if err := json.Unmarshal(result, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object %s: %w", objectID, err)
	}
	return &obj, nil
}

// GetBalance returns the total balance of coinType owned by owner. An empty
// coinType selects the native coin.
func (c *Client) GetBalance(ctx context.Context, owner, coinType string) (*Balance, error) {
	params := []interface{}{owner}
	if coinType != "" {
		params = append(params, coinType)
	}
	result, err := c.Call(ctx, "iotax_getBalance", params)
	if err != nil {
		return nil, fmt.Errorf("iotax_getBalance(%s): %w", owner, err)
	}

	var bal Balance
	if err := json.Unmarshal(result, &bal); err != nil {
		return nil, fmt.Errorf("unmarshal balance: %w", err)
	}
	return &bal, nil
}
