// Package ratelimit throttles navigations per site with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/titlecheck/internal/metrics"
	"github.com/JakeFAU/titlecheck/internal/verify"
)

// Config holds rate limiter configuration.
type Config struct {
	// DefaultRPS is the sustained navigations per second per site. Zero or
	// less disables throttling.
	DefaultRPS   float64
	DefaultBurst int
}

// Limiter keeps one bucket per site. "www.example.com" and "example.com"
// share a bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.DefaultRPS > 0 {
		limit = rate.Limit(cfg.DefaultRPS)
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   max(cfg.DefaultBurst, 1),
	}
}

// Wait blocks until rawURL's site has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	site := siteOf(rawURL)
	start := time.Now()
	if err := l.bucket(site).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", site, err)
	}
	// Immediate grants are not delays.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(site, waited)
	}
	return nil
}

// Sites reports how many sites have a bucket.
func (l *Limiter) Sites() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(site string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[site]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[site] = b
	}
	return b
}

func siteOf(rawURL string) string {
	if site := verify.BaseDomain(rawURL); site != "" {
		return site
	}
	return "unknown"
}
