package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/pkg/failure"
)

// fastPolicy keeps test runs short.
var fastPolicy = Policy{
	Name:          "fast",
	MaxAttempts:   3,
	BaseDelay:     time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2.0,
}

func TestDoWithPolicySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), fastPolicy, func() error {
		calls++
		if calls < 3 {
			return failure.New(failure.Dependency, "not yet")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithPolicyExhaustsAttempts(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), fastPolicy, func() error {
		calls++
		return failure.New(failure.Dependency, "still broken")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fastPolicy.MaxAttempts, fe.Attempt)
	assert.Equal(t, fastPolicy.MaxAttempts, fe.MaxAttempts)
}

func TestDoWithPolicyStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), fastPolicy, func() error {
		calls++
		return failure.New(failure.Validation, "bad input")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, failure.Validation, failure.ReasonOf(err))
}

func TestDoWithPolicyInvokesOnRetry(t *testing.T) {
	var retries []int
	calls := 0
	err := DoWithPolicy(context.Background(), fastPolicy, func() error {
		calls++
		return errors.New("unavailable")
	}, func(attempt int, err error, next time.Duration) {
		retries = append(retries, attempt)
	})

	require.Error(t, err)
	// onRetry fires for every failure except the final one.
	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, 3, calls)
}

func TestDoSelectsProfileFromFirstFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return failure.New(failure.Validation, "malformed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "VALIDATION maps to the single-attempt profile")
}

func TestDoRecoversPanics(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), Policy{Name: "one", MaxAttempts: 1, BackoffFactor: 2.0}, func() error {
		calls++
		panic("kaboom")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, failure.Runtime, failure.ReasonOf(err))
}

func TestDoWithPolicyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := Policy{
		Name:          "slow",
		MaxAttempts:   5,
		BaseDelay:     time.Minute,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}

	calls := 0
	err := DoWithPolicy(ctx, slow, func() error {
		calls++
		return errors.New("unavailable")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancelled context stops the schedule before the second attempt")
}
