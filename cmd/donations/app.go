package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/graphql"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
	"github.com/phuchtq/iota-donation-platform/internal/chain/ratelimit"
	"github.com/phuchtq/iota-donation-platform/internal/config"
	"github.com/phuchtq/iota-donation-platform/internal/dispatch"
	"github.com/phuchtq/iota-donation-platform/internal/notice"
	"github.com/phuchtq/iota-donation-platform/internal/query"
	"github.com/phuchtq/iota-donation-platform/internal/resolver"
	"github.com/phuchtq/iota-donation-platform/internal/session"
	"github.com/phuchtq/iota-donation-platform/internal/transport"
	"github.com/phuchtq/iota-donation-platform/internal/viewstate"
	"github.com/phuchtq/iota-donation-platform/internal/wallet"
)

var (
	newRedisTransport  = func(ctx context.Context, url string, maxLen int64) (transport.MessageTransport, error) { return transport.NewRedisStream(ctx, url, maxLen) }
	newMemoryTransport = func(maxLen int64) transport.MessageTransport { return transport.NewInMemoryStream(maxLen) }
)

// app is the wired client for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	ledger     *rpc.Client
	store      *viewstate.Store
	session    *session.Session
	dispatcher *dispatch.Dispatcher
}

func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) *app {
	network := cfg.Network.Name.String()

	ledger := rpc.NewClient(cfg.Network.RPCURL, "fullnode", logger)
	indexer := graphql.NewClient(cfg.Network.GraphQLURL, logger)
	if cfg.RPC.RateLimitRPS > 0 {
		ledger.SetRateLimiter(ratelimit.NewLimiter(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst, "fullnode"))
		indexer.SetRateLimiter(ratelimit.NewLimiter(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst, "indexer"))
	}

	res := resolver.New(ledger, resolver.Config{
		Network:          network,
		CacheSize:        cfg.Resolver.CacheSize,
		CacheTTL:         cfg.Resolver.CacheTTL,
		FailureThreshold: cfg.Resolver.FailureThreshold,
		OpenTimeout:      cfg.Resolver.OpenTimeout,
	}, logger)
	queries := query.NewService(indexer, res, query.Config{
		Network:   network,
		PackageID: cfg.Contract.PackageID,
		Strict:    cfg.Query.Strict,
	}, logger)

	w := buildWallet(cfg, logger)
	notifier := buildNotifier(cfg, logger, out)
	store := viewstate.New()
	sess := session.New(queries, store, w, notifier, session.Config{Network: network}, logger)
	dispatcher := dispatch.New(w, store, sess, notifier, dispatch.Config{
		PackageID: cfg.Contract.PackageID,
		Network:   network,
	}, logger, dispatch.WithObserver(func(s dispatch.State) {
		logger.Debug("dispatcher state", "phase", string(s.Phase), "action", string(s.Action), "request_id", s.RequestID)
	}))

	return &app{
		cfg:        cfg,
		logger:     logger,
		ledger:     ledger,
		store:      store,
		session:    sess,
		dispatcher: dispatcher,
	}
}

func buildWallet(cfg *config.Config, logger *slog.Logger) wallet.Wallet {
	if cfg.Wallet.BridgeURL != "" {
		return wallet.NewBridgeClient(cfg.Wallet.BridgeURL, cfg.Network.Name, logger)
	}
	return wallet.NewStatic(cfg.Wallet.Address)
}

func buildNotifier(cfg *config.Config, logger *slog.Logger, out io.Writer) notice.Notifier {
	notifiers := []notice.Notifier{notice.NewConsole(out)}
	if cfg.Notice.SlackWebhookURL != "" {
		notifiers = append(notifiers, notice.NewSlack(cfg.Notice.SlackWebhookURL))
	}
	if cfg.Notice.WebhookURL != "" {
		notifiers = append(notifiers, notice.NewWebhook(cfg.Notice.WebhookURL))
	}
	return notice.NewMulti(cfg.Notice.Cooldown, logger, notifiers...)
}

// resolveSnapshotTransport returns the stream committed views are published
// to, and the backend label used in metrics.
func resolveSnapshotTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (transport.MessageTransport, string, error) {
	if cfg.Snapshot.Transport != config.SnapshotTransportRedis {
		return newMemoryTransport(cfg.Snapshot.MaxLen), config.SnapshotTransportMemory, nil
	}

	redisURL := strings.TrimSpace(cfg.Snapshot.RedisURL)
	if redisURL == "" {
		return nil, "", fmt.Errorf("initialize redis snapshot transport: redis URL is empty")
	}
	stream, err := newRedisTransport(ctx, redisURL, cfg.Snapshot.MaxLen)
	if err != nil {
		return nil, "", fmt.Errorf("initialize redis snapshot transport: %w", err)
	}
	if stream == nil {
		return nil, "", fmt.Errorf("initialize redis snapshot transport: backend is nil")
	}
	logger.Info("redis snapshot transport enabled", "stream", cfg.Snapshot.Stream)
	return stream, config.SnapshotTransportRedis, nil
}
