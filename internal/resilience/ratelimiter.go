package resilience

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by caller identity. A
// request is rejected once the count inside the window reaches MaxRequests.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	history map[string][]time.Time

	now func() time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		history:     make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow records and admits the request unless the caller already issued
// MaxRequests inside the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.history[key]
	for len(recent) > 0 && recent[0].Before(cutoff) {
		recent = recent[1:]
	}

	if len(recent) >= rl.maxRequests {
		rl.history[key] = recent
		return false
	}

	rl.history[key] = append(recent, now)
	return true
}

// Count returns the number of requests inside the current window for key.
func (rl *RateLimiter) Count(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	n := 0
	for _, t := range rl.history[key] {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}

// Reset drops the recorded history for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, key)
}
