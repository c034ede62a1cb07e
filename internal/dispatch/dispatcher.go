// Package dispatch submits the three state-changing actions (create, donate,
// close) and rebuilds the view once the ledger confirms them.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuchtq/iota-donation-platform/internal/chain/classify"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/tx"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/metrics"
	"github.com/phuchtq/iota-donation-platform/internal/notice"
	"github.com/phuchtq/iota-donation-platform/internal/tracing"
	"github.com/phuchtq/iota-donation-platform/internal/wallet"
	"go.opentelemetry.io/otel/attribute"
)

// Refresher rebuilds the derived view.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// View is the part of the view state the dispatcher checks preconditions
// against.
type View interface {
	Account() *model.Account
	Campaign(id string) (model.Campaign, bool)
}

// Receipt identifies a confirmed action.
type Receipt struct {
	Action    Action
	RequestID string
	Digest    string
}

type Config struct {
	PackageID string
	Network   string
}

type Dispatcher struct {
	wallet    wallet.Wallet
	view      View
	refresher Refresher
	notifier  notice.Notifier
	cfg       Config
	logger    *slog.Logger

	// token is the single in-flight slot; holding it means an action runs.
	token chan struct{}

	mu       sync.Mutex
	state    State
	observer func(State)
}

type Option func(*Dispatcher)

// WithObserver calls fn on every state transition, synchronously.
func WithObserver(fn func(State)) Option {
	return func(d *Dispatcher) { d.observer = fn }
}

func New(w wallet.Wallet, view View, refresher Refresher, notifier notice.Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notice.Noop{}
	}
	d := &Dispatcher{
		wallet:    w,
		view:      view,
		refresher: refresher,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With("component", "dispatcher"),
		token:     make(chan struct{}, 1),
		state:     State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current step.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// CreateCampaign creates a campaign owned by the connected account.
func (d *Dispatcher) CreateCampaign(ctx context.Context, name, description string) (*Receipt, error) {
	account, err := d.requireAccount()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "required"}
	}

	t := tx.New()
	t.SetSender(account.Address)
	t.MoveCall(d.cfg.PackageID, model.FundraisingModule, "create_campaign",
		t.PureString(name),
		t.PureString(description),
	)
	return d.submit(ctx, ActionCreateCampaign, t, attribute.String("campaign.name", name))
}

// Donate splits amount off the gas coin and donates it to campaignID.
func (d *Dispatcher) Donate(ctx context.Context, campaignID, amount string) (*Receipt, error) {
	account, err := d.requireAccount()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, &ValidationError{Field: "campaign", Reason: "required"}
	}
	base, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if c, ok := d.view.Campaign(campaignID); ok && !c.IsActive {
		return nil, ErrCampaignClosed
	}

	t := tx.New()
	t.SetSender(account.Address)
	coin := t.SplitCoins(tx.GasCoin(), t.PureU64(base))
	t.MoveCall(d.cfg.PackageID, model.FundraisingModule, "donate",
		t.Object(campaignID),
		coin.Nested(0),
	)
	return d.submit(ctx, ActionDonate, t,
		tracing.CampaignIDKey.String(campaignID),
		attribute.String("amount.base_units", strconv.FormatUint(base, 10)),
	)
}

// CloseCampaign closes campaignID. Only the creator may close a campaign.
func (d *Dispatcher) CloseCampaign(ctx context.Context, campaignID string) (*Receipt, error) {
	account, err := d.requireAccount()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, &ValidationError{Field: "campaign", Reason: "required"}
	}
	if c, ok := d.view.Campaign(campaignID); ok {
		if !c.IsActive {
			return nil, ErrCampaignClosed
		}
		if c.Creator != account.Address {
			return nil, ErrNotCampaignCreator
		}
	}

	t := tx.New()
	t.SetSender(account.Address)
	t.MoveCall(d.cfg.PackageID, model.FundraisingModule, "close_campaign", t.Object(campaignID))
	return d.submit(ctx, ActionCloseCampaign, t, tracing.CampaignIDKey.String(campaignID))
}

func (d *Dispatcher) requireAccount() (*model.Account, error) {
	account := d.view.Account()
	if account == nil || account.Address == "" {
		return nil, ErrNotConnected
	}
	return account, nil
}

func (d *Dispatcher) submit(ctx context.Context, action Action, t *tx.Transaction, attrs ...attribute.KeyValue) (receipt *Receipt, err error) {
	select {
	case d.token <- struct{}{}:
	default:
		return nil, ErrActionInFlight
	}
	defer func() { <-d.token }()

	requestID := uuid.NewString()
	log := d.logger.With("action", string(action), "request_id", requestID)
	start := time.Now()

	ctx, span := tracing.Start(ctx, "dispatch", string(action), append(attrs, tracing.RequestIDKey.String(requestID))...)
	defer func() { tracing.End(span, err) }()

	d.transition(State{Phase: PhaseSubmitting, Action: action, RequestID: requestID})
	log.Info("submitting transaction")

	res, err := d.wallet.SignAndExecute(ctx, t)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		d.transition(State{Phase: PhaseRejected, Action: action, RequestID: requestID})
		d.transition(State{Phase: PhaseIdle})
		decision := classify.Classify(err)
		log.Error("action rejected", "error", err, "class", decision.Class, "reason", decision.Reason)
		d.record(action, "rejected", start)
		d.notify(ctx, notice.KindError, action, actionMessages[action].failure, requestID, err)
		return nil, &ActionError{Action: action, RequestID: requestID, Class: decision.Class, Err: err}
	}

	receipt = &Receipt{Action: action, RequestID: requestID, Digest: res.Digest}
	span.SetAttributes(tracing.DigestKey.String(res.Digest))
	d.transition(State{Phase: PhaseConfirmed, Action: action, RequestID: requestID})
	log.Info("transaction confirmed", "digest", res.Digest)

	d.transition(State{Phase: PhaseRefreshing, Action: action, RequestID: requestID})
	refreshErr := d.refresher.Refresh(ctx)
	d.transition(State{Phase: PhaseIdle})

	d.notify(ctx, notice.KindSuccess, action, actionMessages[action].success, requestID, nil)
	if refreshErr != nil {
		log.Warn("refresh after confirmed action failed", "error", refreshErr)
		d.record(action, "confirmed_stale_view", start)
		return receipt, &RefreshError{Action: action, Err: refreshErr}
	}
	d.record(action, "confirmed", start)
	return receipt, nil
}

func (d *Dispatcher) transition(s State) {
	d.mu.Lock()
	d.state = s
	observer := d.observer
	d.mu.Unlock()
	if observer != nil {
		observer(s)
	}
}

func (d *Dispatcher) record(action Action, outcome string, start time.Time) {
	metrics.ActionsTotal.WithLabelValues(string(action), outcome).Inc()
	metrics.ActionLatency.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())
}

func (d *Dispatcher) notify(ctx context.Context, kind notice.Kind, action Action, msg, requestID string, cause error) {
	n := notice.Notice{
		Kind:    kind,
		Action:  string(action),
		Network: d.cfg.Network,
		Message: msg,
		Fields:  map[string]string{"request_id": requestID},
	}
	if cause != nil {
		n.Fields["error"] = cause.Error()
	}
	// The action outcome does not depend on delivery.
	if err := d.notifier.Send(context.WithoutCancel(ctx), n); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("notice delivery failed", "action", string(action), "error", err)
	}
}
