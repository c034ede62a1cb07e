// Package session drives refresh cycles: it queries the ledger, aggregates
// the result for the connected account and commits it to the view store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/aggregate"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/metrics"
	"github.com/phuchtq/iota-donation-platform/internal/notice"
	"github.com/phuchtq/iota-donation-platform/internal/query"
	"github.com/phuchtq/iota-donation-platform/internal/tracing"
	"github.com/phuchtq/iota-donation-platform/internal/viewstate"
	"github.com/phuchtq/iota-donation-platform/internal/wallet"
	"golang.org/x/sync/errgroup"
)

// Querier loads campaign and donation records. *query.Service implements it.
type Querier interface {
	Campaigns(ctx context.Context) ([]model.Campaign, []query.Failure, error)
	Donations(ctx context.Context) ([]model.Donation, []query.Failure, error)
}

type Config struct {
	Network string
}

type Session struct {
	querier  Querier
	store    *viewstate.Store
	wallet   wallet.Wallet
	notifier notice.Notifier
	health   *Health
	cfg      Config
	logger   *slog.Logger
}

func New(querier Querier, store *viewstate.Store, w wallet.Wallet, notifier notice.Notifier, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notice.Noop{}
	}
	return &Session{
		querier:  querier,
		store:    store,
		wallet:   w,
		notifier: notifier,
		health:   NewHealth(cfg.Network),
		cfg:      cfg,
		logger:   logger.With("component", "session"),
	}
}

func (s *Session) Health() *Health {
	return s.health
}

// Refresh rebuilds the view for the store's account. A query error leaves
// the committed view untouched.
func (s *Session) Refresh(ctx context.Context) (err error) {
	seq := s.store.Begin()
	account := s.store.Account()
	start := time.Now()

	ctx, span := tracing.Start(ctx, "session", "Refresh", tracing.SequenceKey.Int64(int64(seq)))
	defer func() { tracing.End(span, err) }()

	if account == nil {
		s.commit(seq, model.EmptyView(nil), start)
		return nil
	}
	span.SetAttributes(tracing.AccountKey.String(account.Address))

	var (
		campaigns        []model.Campaign
		donations        []model.Donation
		campaignFailures []query.Failure
		donationFailures []query.Failure
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		campaigns, campaignFailures, err = s.querier.Campaigns(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		donations, donationFailures, err = s.querier.Donations(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.recordFailure(ctx, seq, err, start)
		return fmt.Errorf("refresh %d: %w", seq, err)
	}

	view := aggregate.Aggregate(campaigns, donations, account)
	for _, f := range campaignFailures {
		view.Failures = append(view.Failures, f.Record())
	}
	for _, f := range donationFailures {
		view.Failures = append(view.Failures, f.Record())
	}
	s.commit(seq, view, start)
	return nil
}

func (s *Session) commit(seq uint64, view model.ViewState, start time.Time) {
	latency := time.Since(start)
	metrics.RefreshLatency.WithLabelValues(s.cfg.Network).Observe(latency.Seconds())

	if !s.store.Commit(seq, view) {
		metrics.RefreshTotal.WithLabelValues(s.cfg.Network, "stale").Inc()
		s.logger.Debug("refresh result discarded, newer view exists", "sequence", seq)
		return
	}
	metrics.RefreshTotal.WithLabelValues(s.cfg.Network, "ok").Inc()
	s.logger.Info("view refreshed",
		"sequence", seq,
		"campaigns", len(view.Campaigns),
		"user_donations", len(view.UserDonations),
		"failures", len(view.Failures),
		"duration_ms", latency.Milliseconds(),
	)
	if s.health.RecordSuccess(latency) {
		s.send(notice.KindSuccess, "refresh recovered", nil)
	}
}

func (s *Session) recordFailure(ctx context.Context, seq uint64, err error, start time.Time) {
	metrics.RefreshLatency.WithLabelValues(s.cfg.Network).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		metrics.RefreshTotal.WithLabelValues(s.cfg.Network, "canceled").Inc()
		return
	}
	metrics.RefreshTotal.WithLabelValues(s.cfg.Network, "error").Inc()
	s.logger.Warn("refresh failed", "sequence", seq, "error", err)
	if s.health.RecordFailure(err) {
		s.send(notice.KindError, "refresh unhealthy", err)
	}
}

func (s *Session) send(kind notice.Kind, msg string, cause error) {
	n := notice.Notice{
		Kind:    kind,
		Action:  "refresh",
		Network: s.cfg.Network,
		Message: msg,
		Fields:  map[string]string{},
	}
	if cause != nil {
		n.Fields["error"] = cause.Error()
	}
	if err := s.notifier.Send(context.Background(), n); err != nil {
		s.logger.Warn("notice delivery failed", "error", err)
	}
}

// SetAccount switches the view to account and refreshes it. Switching to
// the same account is a no-op.
func (s *Session) SetAccount(ctx context.Context, account *model.Account) error {
	if model.SameAccount(s.store.Account(), account) {
		return nil
	}
	addr := ""
	if account != nil {
		addr = account.Address
	}
	s.logger.Info("account changed", "account", addr)
	s.store.Reset(account)
	return s.Refresh(ctx)
}

// Sync reads the wallet's current account and refreshes the view for it.
func (s *Session) Sync(ctx context.Context) error {
	account, err := s.wallet.CurrentAccount(ctx)
	if err != nil {
		return fmt.Errorf("current account: %w", err)
	}
	if !model.SameAccount(s.store.Account(), account) {
		return s.SetAccount(ctx, account)
	}
	return s.Refresh(ctx)
}

// Watch syncs immediately and then every interval until ctx is done.
// Errors are logged and the loop keeps going.
func (s *Session) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
