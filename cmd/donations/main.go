package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/admin"
	"github.com/phuchtq/iota-donation-platform/internal/config"
	"github.com/phuchtq/iota-donation-platform/internal/dispatch"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/session"
	"github.com/phuchtq/iota-donation-platform/internal/tracing"
	"github.com/phuchtq/iota-donation-platform/internal/viewstate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "iota-donations"
	nativeCoinType = "0x2::iota::IOTA"
)

const usage = `usage: donations <command> [flags]

commands:
  browse                                  list active campaigns
  my-campaigns                            list campaigns created by the connected account
  my-donations                            list donations made by the connected account
  create -name N -description D           create a campaign
  donate -campaign ID -amount A           donate A IOTA to a campaign
  close -campaign ID                      close a campaign you created
  balance                                 show the connected account's IOTA balance
  watch                                   keep the view refreshed; serve /healthz, /metrics and /admin/v1
`

// errUsage marks errors caused by bad command-line input.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.Log.Level, stderr)
	slog.SetDefault(logger)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: serviceName,
		Network:     cfg.Network.Name.String(),
		Endpoint:    tracingEndpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	a := newApp(cfg, logger, stdout)
	logger.Debug("client configured",
		"network", cfg.Network.Name.String(),
		"rpc_url", cfg.Network.RPCURL,
		"graphql_url", cfg.Network.GraphQLURL,
		"package_id", cfg.Contract.PackageID,
		"wallet_bridge", cfg.Wallet.BridgeURL != "",
	)

	if err := a.runCommand(ctx, args[0], args[1:], stdout); err != nil {
		var refreshErr *dispatch.RefreshError
		switch {
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		case errors.As(err, &refreshErr):
			fmt.Fprintf(stderr, "warning: %v\n", err)
			return 0
		case errors.Is(err, context.Canceled):
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(level string, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func (a *app) runCommand(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "browse":
		return a.browse(ctx, args, out)
	case "my-campaigns":
		return a.myCampaigns(ctx, args, out)
	case "my-donations":
		return a.myDonations(ctx, args, out)
	case "create":
		return a.create(ctx, args, out)
	case "donate":
		return a.donate(ctx, args, out)
	case "close":
		return a.closeCampaign(ctx, args, out)
	case "balance":
		return a.balance(ctx, args, out)
	case "watch":
		return a.watch(ctx, args)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected argument %q", errUsage, fs.Name(), fs.Arg(0))
	}
	return nil
}

func (a *app) browse(ctx context.Context, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("browse", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	renderBrowse(out, a.store.Snapshot())
	return nil
}

func (a *app) myCampaigns(ctx context.Context, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("my-campaigns", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	view := a.store.Snapshot()
	if view.Account == nil {
		return dispatch.ErrNotConnected
	}
	renderMyCampaigns(out, view)
	return nil
}

func (a *app) myDonations(ctx context.Context, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("my-donations", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	view := a.store.Snapshot()
	if view.Account == nil {
		return dispatch.ErrNotConnected
	}
	renderMyDonations(out, view)
	return nil
}

func (a *app) create(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	name := fs.String("name", "", "campaign name")
	description := fs.String("description", "", "campaign description")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	receipt, err := a.dispatcher.CreateCampaign(ctx, *name, *description)
	printReceipt(out, receipt)
	return err
}

func (a *app) donate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("donate", flag.ContinueOnError)
	campaignID := fs.String("campaign", "", "campaign object id")
	amount := fs.String("amount", "", "amount in IOTA, e.g. 1.5")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	receipt, err := a.dispatcher.Donate(ctx, *campaignID, *amount)
	printReceipt(out, receipt)
	return err
}

func (a *app) closeCampaign(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	campaignID := fs.String("campaign", "", "campaign object id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	receipt, err := a.dispatcher.CloseCampaign(ctx, *campaignID)
	printReceipt(out, receipt)
	return err
}

func (a *app) balance(ctx context.Context, args []string, out io.Writer) error {
	if err := parseFlags(flag.NewFlagSet("balance", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.session.Sync(ctx); err != nil {
		return err
	}
	account := a.store.Account()
	if account == nil {
		return dispatch.ErrNotConnected
	}
	bal, err := a.ledger.GetBalance(ctx, account.Address, nativeCoinType)
	if err != nil {
		return err
	}
	base, err := strconv.ParseUint(bal.TotalBalance, 10, 64)
	if err != nil {
		return fmt.Errorf("parse balance %q: %w", bal.TotalBalance, err)
	}
	fmt.Fprintf(out, "%s: %s IOTA (%d coins)\n", account.Address, formatAmount(model.FromBaseUnits(base)), bal.CoinObjectCount)
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	if err := parseFlags(flag.NewFlagSet("watch", flag.ContinueOnError), args); err != nil {
		return err
	}

	stream, backend, err := resolveSnapshotTransport(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			a.logger.Warn("snapshot transport close error", "error", err)
		}
	}()
	publisher := viewstate.NewPublisher(a.store, stream, a.cfg.Snapshot.Stream, backend, a.logger)

	g, gCtx := errgroup.WithContext(ctx)
	if a.cfg.Server.HealthPort > 0 {
		g.Go(func() error {
			api := admin.NewServer(a.store, a.session, a.logger)
			return runHealthServer(gCtx, a.cfg.Server.HealthPort, a.session.Health(), api.Handler(admin.NewRateLimitMiddleware(a.logger)), a.logger)
		})
	}
	g.Go(func() error {
		return publisher.Run(gCtx)
	})
	g.Go(func() error {
		return a.session.Watch(gCtx, a.cfg.Session.RefreshInterval)
	})

	a.logger.Info("watching",
		"network", a.cfg.Network.Name.String(),
		"interval", a.cfg.Session.RefreshInterval.String(),
		"health_port", a.cfg.Server.HealthPort,
		"snapshot_backend", backend,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("watch stopped")
	return nil
}

func runHealthServer(ctx context.Context, port int, health *session.Health, adminAPI http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/admin/", adminAPI)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
