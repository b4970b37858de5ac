// Package ratelimit provides a per-key minimum-interval gate.
package ratelimit

import (
	"sync"
	"time"
)

// StaleAfter is how long an idle key stays in the map before the
// sweep drops it.
const StaleAfter = 60 * time.Second

// DefaultMinInterval is the default spacing between accepted requests
// for one key.
const DefaultMinInterval = 2 * time.Second

// Limiter admits at most one request per key per interval. It keeps
// only the last accepted timestamp per key, so a burst beyond that
// single timestamp carries no history. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	staleAfter  time.Duration
	last        map[string]time.Time

	now func() time.Time // swappable for tests
}

// New creates a Limiter with the given minimum interval between
// accepted requests per key.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		staleAfter:  StaleAfter,
		last:        make(map[string]time.Time),
		now:         time.Now,
	}
}

// Allow reports whether a request for key may proceed now. A rejection
// returns the remaining wait and does not refresh the key's timestamp,
// so hammering does not extend the penalty.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()

	// Drop every stale entry, not just this key's. Keeps the map
	// bounded by the number of recently active keys.
	for k, last := range l.last {
		if t.Sub(last) > l.staleAfter {
			delete(l.last, k)
		}
	}

	if last, ok := l.last[key]; ok {
		elapsed := t.Sub(last)
		if elapsed < l.minInterval {
			return false, l.minInterval - elapsed
		}
	}

	l.last[key] = t
	return true, 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
