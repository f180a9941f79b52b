package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pulse/pkg/failure"
)

func TestProfileFor(t *testing.T) {
	tests := []struct {
		reason failure.Reason
		want   string
	}{
		{failure.Validation, "none"},
		{failure.Authentication, "none"},
		{failure.Timeout, "quick"},
		{failure.Network, "aggressive"},
		{failure.Integration, "aggressive"},
		{failure.Dependency, "standard"},
		{failure.Runtime, "standard"},
		{failure.Resource, "standard"},
		{failure.RateLimit, "standard"},
		{failure.Unknown, "standard"},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.want, ProfileFor(tt.reason).Name)
		})
	}
}

func TestDelayBounds(t *testing.T) {
	// Quick: 100ms base, factor 2, cap 1s, jitter [0.75, 1.25).
	for attempt := 0; attempt < Quick.MaxAttempts; attempt++ {
		d := Quick.Delay(attempt)

		expected := 100 * time.Millisecond << attempt
		if expected > time.Second {
			expected = time.Second
		}

		assert.GreaterOrEqual(t, d, time.Duration(float64(expected)*0.75), "attempt %d", attempt)
		assert.Less(t, d, time.Duration(float64(expected)*1.25), "attempt %d", attempt)
	}
}

func TestDelayCapped(t *testing.T) {
	// Aggressive attempt 9: 2s*2^9 = 1024s, far past the 300s cap.
	d := Aggressive.Delay(9)
	assert.LessOrEqual(t, d, time.Duration(float64(300*time.Second)*1.25))
	assert.GreaterOrEqual(t, d, time.Duration(float64(300*time.Second)*0.75))
}

func TestDelayZeroWhenExhausted(t *testing.T) {
	assert.Equal(t, time.Duration(0), Quick.Delay(Quick.MaxAttempts))
	assert.Equal(t, time.Duration(0), Quick.Delay(Quick.MaxAttempts+3))
}

func TestDelayZeroForNone(t *testing.T) {
	assert.Equal(t, time.Duration(0), None.Delay(0))
	assert.Equal(t, time.Duration(0), None.Delay(5))
}

func TestShouldRetry(t *testing.T) {
	netErr := failure.New(failure.Network, "connection reset")
	valErr := failure.New(failure.Validation, "bad input")

	assert.True(t, Quick.ShouldRetry(netErr, 0))
	assert.True(t, Quick.ShouldRetry(netErr, 1))
	assert.False(t, Quick.ShouldRetry(netErr, 2), "third failure exhausts 3 attempts")

	assert.False(t, Quick.ShouldRetry(valErr, 0), "validation never retries")
	assert.False(t, None.ShouldRetry(netErr, 0), "none allows a single attempt")
}
