package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation stage counters and histograms, partitioned by network.

var (
	// Query service
	QueryRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Total type-filtered indexer queries",
	}, []string{"network", "kind", "outcome"})

	QueryRecordsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "query",
		Name:      "records_resolved_total",
		Help:      "Total indexed records resolved into full objects",
	}, []string{"network", "kind"})

	QueryRecordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "query",
		Name:      "record_failures_total",
		Help:      "Total indexed records that failed to resolve or map",
	}, []string{"network", "kind"})

	QueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "donations",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Query duration including per-record resolution fan-out",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network", "kind"})

	// Resolver
	ResolverLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "resolver",
		Name:      "lookups_total",
		Help:      "Total object point lookups by outcome",
	}, []string{"network", "outcome"})

	ResolverCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "resolver",
		Name:      "cache_hits_total",
		Help:      "Total object lookups served from the digest cache",
	}, []string{"network"})

	ResolverCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "resolver",
		Name:      "cache_misses_total",
		Help:      "Total object lookups that missed the digest cache",
	}, []string{"network"})

	ResolverBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donations",
		Subsystem: "resolver",
		Name:      "breaker_state",
		Help:      "Resolver circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"network"})

	// Dispatcher
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "dispatch",
		Name:      "actions_total",
		Help:      "Total state-changing actions by outcome",
	}, []string{"action", "outcome"})

	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "donations",
		Subsystem: "dispatch",
		Name:      "action_duration_seconds",
		Help:      "Action duration from submission to refreshed state",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"action"})

	// Session
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "session",
		Name:      "refresh_total",
		Help:      "Total refresh cycles by outcome",
	}, []string{"network", "outcome"})

	RefreshLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "donations",
		Subsystem: "session",
		Name:      "refresh_duration_seconds",
		Help:      "Refresh cycle duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network"})

	RefreshStaleDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "session",
		Name:      "refresh_stale_discarded_total",
		Help:      "Total refresh results discarded because a newer cycle exists",
	})

	SessionHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donations",
		Subsystem: "session",
		Name:      "health_status",
		Help:      "Session health (1=healthy, 0.5=degraded, 0=unhealthy)",
	}, []string{"network"})

	SessionConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "donations",
		Subsystem: "session",
		Name:      "consecutive_failures",
		Help:      "Consecutive failed refresh cycles",
	}, []string{"network"})

	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"endpoint"})

	// Notices
	NoticesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "notice",
		Name:      "sent_total",
		Help:      "Total user notices delivered by channel and kind",
	}, []string{"channel", "kind"})

	NoticesCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "notice",
		Name:      "cooldown_skipped_total",
		Help:      "Total notices suppressed by cooldown",
	}, []string{"channel", "kind"})

	// Snapshot transport
	SnapshotsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donations",
		Subsystem: "transport",
		Name:      "snapshots_published_total",
		Help:      "Total view snapshots published by outcome",
	}, []string{"backend", "outcome"})
)
