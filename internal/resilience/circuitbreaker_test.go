package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker("below", 3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()

	assert.False(t, cb.IsOpen())
	assert.Equal(t, 2, cb.FailCount())
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("at-threshold", 2, time.Minute)

	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreakerAllowsTrialAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("trial", 1, 5*time.Millisecond)

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	time.Sleep(10 * time.Millisecond)

	assert.False(t, cb.IsOpen(), "breaker should admit a trial call after the reset timeout")
}

func TestCircuitBreakerReopensOnTrialFailure(t *testing.T) {
	cb := NewCircuitBreaker("reopen", 1, 5*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, cb.IsOpen())

	// The trial call fails; the breaker opens again with a fresh timer.
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreakerClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("close", 1, time.Minute)

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	cb.RecordSuccess()

	assert.False(t, cb.IsOpen())
	assert.Equal(t, 0, cb.FailCount())
}

func TestCircuitBreakerName(t *testing.T) {
	cb := NewCircuitBreaker("llm-primary", 5, time.Minute)
	assert.Equal(t, "llm-primary", cb.Name())
}
