package provider

import (
	"context"
	"errors"
	"time"

	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/resilience"
	"pulse/pkg/metrics"
)

// ErrAllProvidersFailed is returned when the primary is exhausted or open
// and no fallback is configured.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Router sends requests to the primary client behind a circuit breaker and
// a sliding-window rate limit, falling back to a secondary client once the
// primary is unavailable. The fallback call is deliberately unprotected:
// it is the last resort, so its result or error goes straight back to the
// caller.
type Router struct {
	primary  Client
	fallback Client
	breaker  *resilience.CircuitBreaker
	limiter  *resilience.RateLimiter
	retries  int
	logger   logger.Logger
}

// NewRouter builds a provider router. limiter may be nil when no rate
// limit is configured for the primary.
func NewRouter(primary, fallback Client, breaker *resilience.CircuitBreaker, limiter *resilience.RateLimiter, retries int, log logger.Logger) *Router {
	if retries < 0 {
		retries = 0
	}
	return &Router{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		limiter:  limiter,
		retries:  retries,
		logger:   log,
	}
}

func (r *Router) Execute(ctx context.Context, req Request) (Response, error) {
	switch {
	case r.limiter != nil && !r.limiter.Allow(r.primary.Name()):
		metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
		r.logger.WarnwCtx(ctx, "Provider rate limit reached, skipping primary",
			"provider", r.primary.Name(),
		)
	case r.breaker.IsOpen():
		r.logger.WarnwCtx(ctx, "Provider circuit open, skipping primary",
			"provider", r.primary.Name(),
		)
	default:
		resp, err := r.tryPrimary(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.breaker.RecordFailure()
	}

	if r.fallback == nil {
		return Response{}, ErrAllProvidersFailed
	}

	start := time.Now()
	resp, err := r.fallback.Complete(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(r.fallback.Name(), outcome).Inc()
	metrics.ObserveProviderDuration(r.fallback.Name(), outcome, time.Since(start))
	return resp, err
}

// tryPrimary attempts the primary up to retries+1 times with a linearly
// growing delay between attempts.
func (r *Router) tryPrimary(ctx context.Context, req Request) (Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			delay := constants.ProviderRetryStep * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := r.primary.Complete(ctx, req)
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		metrics.ProviderRequestsTotal.WithLabelValues(r.primary.Name(), outcome).Inc()
		metrics.ObserveProviderDuration(r.primary.Name(), outcome, time.Since(start))

		if err == nil {
			r.breaker.RecordSuccess()
			return resp, nil
		}

		lastErr = err
		metrics.RetryAttemptsTotal.WithLabelValues("provider", r.primary.Name()).Inc()
		r.logger.WarnwCtx(ctx, "Provider call failed",
			"provider", r.primary.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}

	return Response{}, lastErr
}
