// Package ratelimit throttles outbound calls to the ledger node and the
// indexer and labels their outcomes for metrics.
package ratelimit

import (
	"context"
	"strings"

	"github.com/phuchtq/iota-donation-platform/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every call to one endpoint.
type Limiter struct {
	bucket *rate.Limiter
	name   string
}

// NewLimiter allows rps calls per second with bursts of up to burst calls.
// rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int, name string) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		bucket: rate.NewLimiter(limit, max(burst, 1)),
		name:   name,
	}
}

// Wait takes one token, blocking until one is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.bucket.Allow() {
		return nil
	}
	metrics.RPCRateLimitWaits.WithLabelValues(l.name).Inc()
	return l.bucket.Wait(ctx)
}

// RecordRPCCall counts one call to method on endpoint by outcome.
func RecordRPCCall(endpoint, method string, err error) {
	metrics.RPCCallsTotal.WithLabelValues(endpoint, method, ClassifyRPCError(err)).Inc()
}

// callStatuses is checked in order; the first label with a matching token wins.
var callStatuses = []struct {
	label  string
	tokens []string
}{
	{"timeout", []string{"timeout", "deadline exceeded"}},
	{"rate_limited", []string{"rate limit", "429", "too many requests"}},
	{"server_error", []string{"500", "502", "503", "504", "internal server error"}},
	{"network_error", []string{"connection refused", "connection reset", "no such host", "network is unreachable", "broken pipe", "eof"}},
}

// ClassifyRPCError maps a call error to a metric status label.
func ClassifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	lower := strings.ToLower(err.Error())
	for _, s := range callStatuses {
		for _, token := range s.tokens {
			if strings.Contains(lower, token) {
				return s.label
			}
		}
	}
	return "client_error"
}
