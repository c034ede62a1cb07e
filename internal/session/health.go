package session

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/metrics"
)

type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive failed refresh
	// cycles before the session is unhealthy.
	DefaultUnhealthyThreshold = 5

	// DefaultDegradedLatencyThreshold is the p95 refresh latency above which
	// the session is degraded.
	DefaultDegradedLatencyThreshold = 10 * time.Second

	latencyWindowSize = 10
)

// Health tracks refresh outcomes for one session.
type Health struct {
	mu                       sync.RWMutex
	network                  string
	status                   HealthStatus
	consecutiveFailures      int
	lastSuccessAt            *time.Time
	lastFailureAt            *time.Time
	lastError                string
	unhealthyThreshold       int
	degradedLatencyThreshold time.Duration
	recentLatencies          []time.Duration
	now                      func() time.Time
}

func NewHealth(network string) *Health {
	h := &Health{
		network:                  network,
		status:                   HealthStatusUnknown,
		unhealthyThreshold:       DefaultUnhealthyThreshold,
		degradedLatencyThreshold: DefaultDegradedLatencyThreshold,
		recentLatencies:          make([]time.Duration, 0, latencyWindowSize),
		now:                      time.Now,
	}
	h.publish()
	return h
}

// RecordSuccess records a committed refresh and its latency. It reports
// whether the session recovered from UNHEALTHY.
func (h *Health) RecordSuccess(latency time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	recovered := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	h.lastError = ""
	h.observeLatency(latency)
	if h.latencyDegraded() {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	h.publish()
	return recovered
}

// RecordFailure records a failed refresh. It reports whether the session
// became UNHEALTHY on this call.
func (h *Health) RecordFailure(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	if err != nil {
		h.lastError = err.Error()
	}
	became := false
	switch {
	case h.consecutiveFailures >= h.unhealthyThreshold:
		became = h.status != HealthStatusUnhealthy
		h.status = HealthStatusUnhealthy
	case h.status != HealthStatusUnhealthy:
		h.status = HealthStatusDegraded
	}
	h.publish()
	return became
}

// observeLatency runs with mu held.
func (h *Health) observeLatency(d time.Duration) {
	if len(h.recentLatencies) >= latencyWindowSize {
		h.recentLatencies = h.recentLatencies[1:]
	}
	h.recentLatencies = append(h.recentLatencies, d)
}

// latencyDegraded runs with mu held.
func (h *Health) latencyDegraded() bool {
	n := len(h.recentLatencies)
	if n < 2 {
		return false
	}
	sorted := slices.Clone(h.recentLatencies)
	slices.Sort(sorted)
	idx := (95*n - 1) / 100
	return sorted[min(max(idx, 0), n-1)] > h.degradedLatencyThreshold
}

// publish runs with mu held.
func (h *Health) publish() {
	var v float64
	switch h.status {
	case HealthStatusHealthy:
		v = 1
	case HealthStatusDegraded:
		v = 0.5
	}
	metrics.SessionHealthStatus.WithLabelValues(h.network).Set(v)
	metrics.SessionConsecutiveFailures.WithLabelValues(h.network).Set(float64(h.consecutiveFailures))
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Network:             h.network,
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		LastError:           h.lastError,
	}
}

// HealthSnapshot is a point-in-time view of session health (JSON-safe).
type HealthSnapshot struct {
	Network             string     `json:"network"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// ServeHTTP writes the snapshot as JSON, with 503 while UNHEALTHY.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snap := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if snap.Status == string(HealthStatusUnhealthy) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(snap)
}
