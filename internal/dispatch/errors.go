package dispatch

import (
	"errors"
	"fmt"

	"github.com/phuchtq/iota-donation-platform/internal/chain/classify"
)

var (
	// ErrNotConnected is returned when an action is attempted with no account.
	ErrNotConnected = errors.New("no wallet account connected")
	// ErrCampaignClosed is returned for donate/close against a campaign the
	// current view shows as closed.
	ErrCampaignClosed = errors.New("campaign is closed")
	// ErrNotCampaignCreator is returned when closing another account's campaign.
	ErrNotCampaignCreator = errors.New("only the campaign creator can close it")
	// ErrActionInFlight is returned when another action has not finished.
	ErrActionInFlight = errors.New("another action is in progress")
)

// ValidationError reports an input rejected before anything is submitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ActionError is a submitted action that the wallet or ledger rejected.
type ActionError struct {
	Action    Action
	RequestID string
	Class     classify.Class
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Action, e.Class, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// RefreshError is returned when an action was confirmed but the view could
// not be rebuilt afterwards. The action itself took effect.
type RefreshError struct {
	Action Action
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s confirmed, refresh failed: %v", e.Action, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
