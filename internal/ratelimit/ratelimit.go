// Package ratelimit counts attempts per key in fixed windows. The Guard
// applies a fail-open policy on top of any Limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
)

// Limiter reports whether one more attempt under key fits into limit
// attempts per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// MemoryLimiter is a process-local Limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter creates an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int64, d time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		l.windows[key] = w
		l.sweep(now)
	}
	w.count++
	return w.count <= limit, nil
}

// sweep drops expired windows. Called with l.mu held.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// Guard applies one limit to a Limiter and fails open: when the backend
// errors the attempt is allowed, logged and counted.
type Guard struct {
	limiter Limiter
	prefix  string
	limit   int64
	window  time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewGuard creates a Guard. A nil limiter allows everything.
func NewGuard(l Limiter, prefix string, limit int64, window time.Duration, logger *log.Logger, m *metrics.Metrics) *Guard {
	if logger == nil {
		logger = log.Nop()
	}
	return &Guard{limiter: l, prefix: prefix, limit: limit, window: window, logger: logger, metrics: m}
}

// Allow reports whether the attempt identified by key may proceed.
func (g *Guard) Allow(ctx context.Context, key string) bool {
	if g == nil || g.limiter == nil {
		return true
	}
	ok, err := g.limiter.Allow(ctx, g.prefix+key, g.limit, g.window)
	if err != nil {
		g.logger.WithError(err).WarnContext(ctx, "rate limiter unavailable, allowing attempt", "key", g.prefix+key)
		g.metrics.RecordRateLimitError()
		return true
	}
	return ok
}
