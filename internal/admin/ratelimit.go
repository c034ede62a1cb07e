package admin

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/cache"
	"golang.org/x/time/rate"
)

const (
	staleLimiterTTL = 10 * time.Minute
	maxClients      = 1024
)

type endpointRule struct {
	method string // empty matches any
	prefix string
	rps    rate.Limit
	burst  int
}

// RateLimitMiddleware limits requests per client IP and endpoint. Idle
// limiters age out of an LRU.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters *cache.LRU[string, *rate.Limiter]
	rules    []endpointRule
	logger   *slog.Logger
}

func NewRateLimitMiddleware(logger *slog.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitMiddleware{
		limiters: cache.NewLRU[string, *rate.Limiter](maxClients, staleLimiterTTL),
		logger:   logger,
		rules: []endpointRule{
			{method: http.MethodPost, prefix: "/admin/v1/refresh", rps: rate.Limit(1.0 / 5), burst: 1},
			{method: http.MethodPut, prefix: "/admin/v1/tab", rps: 2, burst: 5},
			{rps: 10, burst: 20},
		},
	}
}

func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := rl.match(r.Method, r.URL.Path)
		clientIP := extractClientIP(r)
		if !rl.limiter(rule, clientIP).Allow() {
			w.Header().Set("Retry-After", "5")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			rl.logger.Warn("admin API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LimiterCount returns the number of live per-client limiters.
func (rl *RateLimitMiddleware) LimiterCount() int {
	return rl.limiters.Len()
}

func (rl *RateLimitMiddleware) match(method, path string) endpointRule {
	for _, rule := range rl.rules {
		if rule.method != "" && rule.method != method {
			continue
		}
		if !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		return rule
	}
	return rl.rules[len(rl.rules)-1]
}

func (rl *RateLimitMiddleware) limiter(rule endpointRule, clientIP string) *rate.Limiter {
	key := rule.method + ":" + rule.prefix + "|" + clientIP
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rule.rps, rule.burst)
	rl.limiters.Put(key, l)
	return l
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
