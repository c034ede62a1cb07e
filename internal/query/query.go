// Package query loads every campaign and donation object from the indexer
// and resolves each one against the ledger.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/chain/classify"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/graphql"
	"github.com/phuchtq/iota-donation-platform/internal/chain/iota/rpc"
	"github.com/phuchtq/iota-donation-platform/internal/circuitbreaker"
	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/phuchtq/iota-donation-platform/internal/metrics"
	"github.com/phuchtq/iota-donation-platform/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPartial is returned in strict mode when any record fails.
	ErrPartial = errors.New("partial query result")
	// ErrLedgerUnavailable is returned in every mode when lookups fail for
	// the ledger rather than for a record: a transient error, an open
	// breaker, or every indexed object failing to resolve.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// customKind labels metrics and spans for QueryByType.
const customKind = "custom"

// ObjectResolver fetches full object content for an indexed version.
type ObjectResolver interface {
	ResolveAt(ctx context.Context, address, digest string) (*rpc.ObjectData, error)
}

// Failure is one indexed object that could not be resolved or mapped.
type Failure struct {
	Kind    string
	Address string
	Err     error
}

func (f Failure) Record() model.RecordFailure {
	return model.RecordFailure{Kind: f.Kind, Address: f.Address, Error: f.Err.Error()}
}

// Record is one resolved object.
type Record struct {
	Address string
	Digest  string
	Object  *rpc.ObjectData
}

// Result holds the resolved objects in indexer order and the failures.
type Result struct {
	TypeTag  string
	Records  []Record
	Failures []Failure
}

type Config struct {
	Network   string
	PackageID string
	// Strict fails the whole query on the first bad record.
	Strict bool
}

type Service struct {
	indexer  graphql.Indexer
	resolver ObjectResolver
	cfg      Config
	logger   *slog.Logger
}

func NewService(indexer graphql.Indexer, resolver ObjectResolver, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		indexer:  indexer,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.With("component", "query"),
	}
}

// QueryByType lists every object of typeTag and resolves all of them
// concurrently. There is no concurrency cap: one lookup per indexed object.
func (s *Service) QueryByType(ctx context.Context, typeTag string) (*Result, error) {
	return s.query(ctx, customKind, typeTag, nil)
}

// Campaigns returns every indexed campaign.
func (s *Service) Campaigns(ctx context.Context) ([]model.Campaign, []Failure, error) {
	return collect(ctx, s, model.CampaignStructName, toCampaign)
}

// Donations returns every indexed donation.
func (s *Service) Donations(ctx context.Context) ([]model.Donation, []Failure, error) {
	return collect(ctx, s, model.DonationStructName, toDonation)
}

func collect[T any](ctx context.Context, s *Service, kind string, mapFn func(*rpc.ObjectData) (T, error)) ([]T, []Failure, error) {
	mapped := map[int]T{}
	res, err := s.query(ctx, kind, model.TypeTag(s.cfg.PackageID, kind), func(i int, obj *rpc.ObjectData) error {
		v, err := mapFn(obj)
		if err != nil {
			return err
		}
		mapped[i] = v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]T, 0, len(res.Records))
	for i := range res.Records {
		out = append(out, mapped[i])
	}
	return out, res.Failures, nil
}

// query resolves every node of typeTag. check, when set, validates each
// resolved object; its failures count as record failures. Indices passed to
// check are positions in the returned Records.
func (s *Service) query(ctx context.Context, kind, typeTag string, check func(int, *rpc.ObjectData) error) (res *Result, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "query", kind,
		tracing.TypeTagKey.String(typeTag),
		tracing.NetworkKey.String(s.cfg.Network),
		attribute.Bool("strict", s.cfg.Strict),
	)
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case len(res.Failures) > 0:
			outcome = "partial"
		}
		metrics.QueryRequestsTotal.WithLabelValues(s.cfg.Network, kind, outcome).Inc()
		metrics.QueryLatency.WithLabelValues(s.cfg.Network, kind).Observe(time.Since(start).Seconds())
		tracing.End(span, err)
	}()

	page, err := s.indexer.Objects(ctx, typeTag)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", typeTag, err)
	}
	span.SetAttributes(attribute.Int("nodes", len(page.Nodes)))

	outcomes := make([]outcome, len(page.Nodes))
	g, gCtx := errgroup.WithContext(ctx)
	for i, node := range page.Nodes {
		g.Go(func() error {
			o := s.resolveNode(gCtx, kind, node)
			outcomes[i] = o
			switch {
			case o.failure == nil:
				return nil
			case ledgerFailure(o.failure.Err):
				return fmt.Errorf("%w: %s %s: %w", ErrLedgerUnavailable, kind, o.failure.Address, o.failure.Err)
			case s.cfg.Strict:
				return fmt.Errorf("%w: %s %s: %w", ErrPartial, kind, o.failure.Address, o.failure.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query %s: %w", typeTag, err)
	}

	res = &Result{TypeTag: typeTag, Records: make([]Record, 0, len(outcomes))}
	for _, o := range outcomes {
		if o.failure != nil {
			res.Failures = append(res.Failures, *o.failure)
			continue
		}
		res.Records = append(res.Records, o.record)
	}
	if len(res.Records) == 0 && len(res.Failures) > 0 {
		return nil, fmt.Errorf("query %s: %w: all %d lookups failed, first: %w",
			typeTag, ErrLedgerUnavailable, len(res.Failures), res.Failures[0].Err)
	}

	if check != nil {
		kept := res.Records[:0]
		for _, r := range res.Records {
			if err := check(len(kept), r.Object); err != nil {
				f := Failure{Kind: kind, Address: r.Address, Err: fmt.Errorf("map: %w", err)}
				if s.cfg.Strict {
					return nil, fmt.Errorf("query %s: %w: %s %s: %w", typeTag, ErrPartial, kind, f.Address, f.Err)
				}
				res.Failures = append(res.Failures, f)
				continue
			}
			kept = append(kept, r)
		}
		res.Records = kept
	}

	for _, f := range res.Failures {
		s.logger.Warn("record dropped from query result",
			"kind", kind,
			"address", f.Address,
			"error", f.Err,
		)
	}
	metrics.QueryRecordsResolved.WithLabelValues(s.cfg.Network, kind).Add(float64(len(res.Records)))
	metrics.QueryRecordFailures.WithLabelValues(s.cfg.Network, kind).Add(float64(len(res.Failures)))
	return res, nil
}

// ledgerFailure reports whether a lookup error says nothing about the record
// itself: the ledger could not be asked.
func ledgerFailure(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return true
	}
	return classify.Classify(err).IsTransient()
}

type outcome struct {
	record  Record
	failure *Failure
}

func (s *Service) resolveNode(ctx context.Context, kind string, node graphql.ObjectNode) outcome {
	address := node.Address
	if address == "" {
		address = projectionID(node.Projection())
	}
	if address == "" {
		return outcome{failure: &Failure{Kind: kind, Err: errors.New("indexed node has no address")}}
	}

	obj, err := s.resolver.ResolveAt(ctx, address, node.Digest)
	if err != nil {
		return outcome{failure: &Failure{Kind: kind, Address: address, Err: err}}
	}
	return outcome{record: Record{Address: address, Digest: node.Digest, Object: obj}}
}

func projectionID(projection json.RawMessage) string {
	if len(projection) == 0 {
		return ""
	}
	// The projection is the struct itself, so its "id" member is read the
	// same way a nested UID is.
	id, _ := fields{"id": projection}.uid("id")
	return id
}
