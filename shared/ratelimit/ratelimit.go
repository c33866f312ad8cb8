package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter: no more than maxRequests calls
// begin within any rolling window. One instance per external service; note
// that limiters are process-local, so the effective global rate against a
// shared API is (limiter rate) x (worker process count).
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time

	now func() time.Time
}

// New creates a limiter allowing maxRequests calls per window.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Wait blocks until the caller may proceed without exceeding the window
// budget, then records the call. Returns early with ctx.Err() if the context
// is canceled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()

		now := l.now()
		l.prune(now)

		if len(l.timestamps) < l.maxRequests {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}

		// Window is full: sleep until the oldest surviving timestamp exits.
		waitTime := l.window - now.Sub(l.timestamps[0])
		l.mu.Unlock()

		if waitTime <= 0 {
			continue
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending returns the number of calls currently recorded in the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.timestamps)
}

// prune drops timestamps older than the window. Caller must hold mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(l.timestamps) && now.Sub(l.timestamps[cutoff]) >= l.window {
		cutoff++
	}
	if cutoff > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[cutoff:]...)
	}
}
