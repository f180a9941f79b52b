package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pulse/pkg/failure"
)

// Do retries fn under the profile selected by classifying its first
// failure. The returned error carries the attempt counters of the last try.
func Do(ctx context.Context, fn func() error) error {
	var policy Policy
	havePolicy := false

	return retryLoop(ctx, fn, nil, func(fe *failure.Error) Policy {
		if !havePolicy {
			policy = ProfileFor(fe.Reason)
			havePolicy = true
		}
		return policy
	})
}

// DoWithPolicy retries fn under an explicit policy. onRetry is invoked
// after each failed attempt that will be retried, with the wait that
// follows.
func DoWithPolicy(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, next time.Duration)) error {
	return retryLoop(ctx, fn, onRetry, func(*failure.Error) Policy { return policy })
}

func retryLoop(ctx context.Context, fn func() error, onRetry func(int, error, time.Duration), policyFor func(*failure.Error) Policy) error {
	attempt := 0
	pb := &policyBackoff{}

	operation := func() error {
		err := call(fn)
		if err == nil {
			return nil
		}

		fe := failure.ClassifyError(err)
		policy := policyFor(fe)
		pb.policy = policy

		fe.Attempt = attempt + 1
		fe.MaxAttempts = policy.MaxAttempts

		if !policy.ShouldRetry(fe, attempt) {
			return backoff.Permanent(fe)
		}

		if onRetry != nil {
			onRetry(fe.Attempt, fe, policy.Delay(attempt))
		}

		attempt++
		return fe
	}

	err := backoff.Retry(operation, backoff.WithContext(pb, ctx))

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.RecoverPanic(r)
		}
	}()
	return fn()
}

// policyBackoff adapts Policy.Delay to the backoff.BackOff interface so the
// runner waits exactly what the profile prescribes. NextBackOff is only
// consulted for attempts the policy already approved.
type policyBackoff struct {
	policy  Policy
	attempt int
}

func (b *policyBackoff) NextBackOff() time.Duration {
	d := b.policy.Delay(b.attempt)
	b.attempt++
	return d
}

func (b *policyBackoff) Reset() {
	b.attempt = 0
}
