// Package ratelimit throttles clients per endpoint using a fixed window that
// restarts on the first request after the previous window has elapsed.
package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one client key after a hit has been recorded.
type Window struct {
	Count int
	Start time.Time
}

// Store records hits. Hit must atomically reset the window when
// now-Start exceeds window, increment the counter, and return the result.
// Concurrent first hits for a key must initialise it exactly once.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error)
}
