package ratelimit

import (
	"context"
	"time"
)

// Defaults applied when Config leaves a field at zero.
const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 60
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter applies a window size and request ceiling on top of a Store.
type Limiter struct {
	store  Store
	window time.Duration
	max    int
	now    func() time.Time
}

// LimiterOption customises a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter builds a Limiter. Non-positive window or max fall back to the
// defaults.
func NewLimiter(store Store, window time.Duration, max int, opts ...LimiterOption) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	l := &Limiter{store: store, window: window, max: max, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the configured window size.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	w, err := l.store.Hit(ctx, key, l.now(), l.window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.max - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.Count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   w.Start.Add(l.window),
	}, nil
}
