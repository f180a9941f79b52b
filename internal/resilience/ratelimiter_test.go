package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user-1"), "request %d should be admitted", i+1)
	}
	assert.False(t, rl.Allow("user-1"))
	assert.Equal(t, 3, rl.Count("user-1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"))
}

func TestRateLimiterWindowSlides(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return current }

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))

	// Half the window on: the first two requests still count.
	current = current.Add(30 * time.Second)
	assert.False(t, rl.Allow("user-1"))

	// Past the window: the old requests fall out and admission resumes.
	current = current.Add(31 * time.Second)
	assert.True(t, rl.Allow("user-1"))
	assert.Equal(t, 1, rl.Count("user-1"))
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))

	rl.Reset("user-1")

	assert.True(t, rl.Allow("user-1"))
}
