package retry

import (
	"math"
	"math/rand"
	"time"

	"pulse/pkg/failure"
)

// Policy describes a backoff schedule. Delay grows exponentially from
// BaseDelay up to MaxDelay, with optional jitter in [0.75, 1.25).
type Policy struct {
	Name          string
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// The four named profiles. Every failure reason maps to exactly one.
var (
	None = Policy{
		Name:          "none",
		MaxAttempts:   1,
		BackoffFactor: 2.0,
	}

	Quick = Policy{
		Name:          "quick",
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}

	Standard = Policy{
		Name:          "standard",
		MaxAttempts:   5,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}

	Aggressive = Policy{
		Name:          "aggressive",
		MaxAttempts:   10,
		BaseDelay:     2 * time.Second,
		MaxDelay:      300 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
)

// ProfileFor returns the retry profile for a failure reason.
func ProfileFor(reason failure.Reason) Policy {
	switch reason {
	case failure.Validation, failure.Authentication:
		return None
	case failure.Timeout:
		return Quick
	case failure.Integration, failure.Network:
		return Aggressive
	default:
		// DEPENDENCY, RUNTIME, RESOURCE, RATE_LIMIT, UNKNOWN
		return Standard
	}
}

// Delay returns the wait before the attempt numbered `attempt` (0-based).
// It is zero once attempts are exhausted.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt >= p.MaxAttempts || p.BaseDelay <= 0 {
		return 0
	}

	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter {
		d *= 0.75 + rand.Float64()*0.5
	}

	return time.Duration(d)
}

// ShouldRetry reports whether another attempt is permitted after a failure
// on the given 0-based attempt number.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if !failure.IsRetryable(err) {
		return false
	}
	return attempt+1 < p.MaxAttempts
}
