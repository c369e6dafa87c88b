package auth

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter bounds failed login attempts per username over a sliding
// window. Once the budget is exhausted, further attempts are rejected
// until enough old failures age out of the window.
//
// State is in-memory only; a process restart clears all counters.
type AttemptLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time // overridable in tests
}

// NewAttemptLimiter creates a limiter allowing max failures per window.
func NewAttemptLimiter(max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the username still has attempt budget left.
func (l *AttemptLimiter) Allow(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(username)) < l.max
}

// RecordFailure counts a failed attempt against the username.
func (l *AttemptLimiter) RecordFailure(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[username] = append(l.prune(username), l.now())
}

// Reset clears the failure record for a username (called on successful login).
func (l *AttemptLimiter) Reset(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, username)
}

// prune drops failures older than the window and returns the remainder.
// Caller must hold the mutex.
func (l *AttemptLimiter) prune(username string) []time.Time {
	cutoff := l.now().Add(-l.window)
	kept := l.failures[username][:0]
	for _, ts := range l.failures[username] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, username)
		return nil
	}
	l.failures[username] = kept
	return kept
}

// Sweep removes usernames whose failures have all aged out.
func (l *AttemptLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for username := range l.failures {
		l.prune(username)
	}
}

// RunSweeper runs Sweep periodically until the context is cancelled.
func (l *AttemptLimiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
