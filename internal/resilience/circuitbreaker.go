package resilience

// Circuit breaker with two stored states, closed and open. Once the breaker
// has been open for ResetTimeout, IsOpen reports false again so one trial
// call can go through; there is no explicit half-open field. A failure on
// the trial re-opens the breaker via the next RecordFailure.

import (
	"sync"
	"time"

	"pulse/pkg/metrics"
)

type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration

	mu        sync.Mutex
	failCount int
	open      bool
	openedAt  time.Time
}

func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return cb
}

// RecordFailure counts a failure and opens the breaker once the threshold
// is reached. Re-recording a failure while open restarts the reset timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failCount++
	metrics.CircuitBreakerFailures.WithLabelValues(cb.name).Inc()

	if cb.failCount >= cb.threshold {
		cb.open = true
		cb.openedAt = time.Now()
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(2)
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failCount = 0
	cb.open = false
	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(0)
}

// IsOpen reports whether calls should be rejected. After ResetTimeout has
// elapsed since opening it reports false, permitting a half-open trial.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return false
	}

	if time.Since(cb.openedAt) >= cb.resetTimeout {
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(1)
		return false
	}

	return true
}

// FailCount returns the current counted failures.
func (cb *CircuitBreaker) FailCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failCount
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}
