package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/tx"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
)

// Caller issues one JSON-RPC call. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}

// Bridge talks JSON-RPC to a wallet daemon that holds the keys and signs on
// the user's behalf.
type Bridge struct {
	caller Caller
	chain  string
	logger *slog.Logger
}

// NewBridge creates a bridge for the given network ("testnet" signs for
// chain "iota:testnet").
func NewBridge(caller Caller, network model.Network, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		caller: caller,
		chain:  "iota:" + network.String(),
		logger: logger.With("component", "wallet_bridge"),
	}
}

// NewBridgeClient dials the bridge at url.
func NewBridgeClient(url string, network model.Network, logger *slog.Logger) *Bridge {
	return NewBridge(rpc.NewClient(url, "wallet", logger), network, logger)
}

type bridgeAccount struct {
	Address string `json:"address"`
}

// CurrentAccount returns the first account the wallet exposes, or nil when
// the wallet has none connected.
func (b *Bridge) CurrentAccount(ctx context.Context) (*model.Account, error) {
	raw, err := b.caller.Call(ctx, "wallet_getAccounts", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("wallet_getAccounts: %w", err)
	}
	var accounts []bridgeAccount
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal accounts: %w", err)
	}
	if len(accounts) == 0 || accounts[0].Address == "" {
		return nil, nil
	}
	return &model.Account{Address: accounts[0].Address}, nil
}

type signRequest struct {
	Transaction string         `json:"transaction"`
	Chain       string         `json:"chain"`
	Options     map[string]any `json:"options"`
}

// SignAndExecute hands t to the wallet, which resolves gas and object
// versions, signs, executes and reports the effects.
func (b *Bridge) SignAndExecute(ctx context.Context, t *tx.Transaction) (*ExecutionResult, error) {
	serialized, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	req := signRequest{
		Transaction: string(serialized),
		Chain:       b.chain,
		Options:     map[string]any{"showEffects": true},
	}
	raw, err := b.caller.Call(ctx, "wallet_signAndExecuteTransaction", []interface{}{req})
	if err != nil {
		return nil, fmt.Errorf("wallet_signAndExecuteTransaction: %w", err)
	}

	var res ExecutionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unmarshal execution result: %w", err)
	}
	b.logger.Debug("transaction executed", "digest", res.Digest, "chain", b.chain)
	return &res, nil
}
