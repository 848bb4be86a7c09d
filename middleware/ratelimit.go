// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	trusted []netip.Prefix
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// Clients are keyed by peer address unless the peer is a trusted proxy.
func NewRateLimiter(perMinute float64, burst int, trustedProxies ...netip.Prefix) *RateLimiter {
	return &RateLimiter{
		trusted: trustedProxies,
		clients: make(map[string]*client),
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether the client identified by key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok {
		rl.evictIdle(now)
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// evictIdle drops clients not seen for idleTTL. Caller holds mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}

// Wrap rejects requests over the limit with 429
func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, rl.trusted)
		if !rl.Allow(ip) {
			slog.Warn("rate limited", "remote", ip, "path", r.URL.Path)
			rateLimitedTotal.WithLabelValues(r.Pattern).Inc()
			retry := 60.0
			if rl.limit > 0 {
				retry = 1 / float64(rl.limit)
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retry+0.5)))
			ErrorResponse(w, http.StatusTooManyRequests, "Request was throttled.")
			return
		}
		next(w, r)
	}
}
