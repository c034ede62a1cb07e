// Package wallet connects the client to an external wallet that owns the
// user's keys.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/tx"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
)

// ErrSigningUnavailable is returned by wallets that can only report an account.
var ErrSigningUnavailable = errors.New("wallet cannot sign transactions")

// Wallet is the connected wallet: the current account (nil when none is
// connected) and the ability to sign and execute a transaction.
type Wallet interface {
	CurrentAccount(ctx context.Context) (*model.Account, error)
	SignAndExecute(ctx context.Context, t *tx.Transaction) (*ExecutionResult, error)
}

const statusSuccess = "success"

// ExecutionResult is what the wallet reports after executing a transaction.
type ExecutionResult struct {
	Digest  string            `json:"digest"`
	Effects *ExecutionEffects `json:"effects,omitempty"`
}

type ExecutionEffects struct {
	Status ExecutionStatus `json:"status"`
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Err returns nil when the transaction executed successfully, otherwise an
// error describing the failure reported in its effects.
func (r *ExecutionResult) Err() error {
	if r == nil {
		return errors.New("no execution result")
	}
	if r.Effects == nil {
		return fmt.Errorf("transaction %s: no effects reported", r.Digest)
	}
	if r.Effects.Status.Status != statusSuccess {
		msg := r.Effects.Status.Error
		if msg == "" {
			msg = r.Effects.Status.Status
		}
		return fmt.Errorf("transaction %s failed: %s", r.Digest, msg)
	}
	return nil
}

// Static reports a fixed account and cannot sign. An empty address means no
// account is connected.
type Static struct {
	account *model.Account
}

func NewStatic(address string) *Static {
	if address == "" {
		return &Static{}
	}
	return &Static{account: &model.Account{Address: address}}
}

func (s *Static) CurrentAccount(context.Context) (*model.Account, error) {
	return s.account, nil
}

func (s *Static) SignAndExecute(context.Context, *tx.Transaction) (*ExecutionResult, error) {
	return nil, ErrSigningUnavailable
}
