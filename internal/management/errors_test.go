package management

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"pulse/internal/dlq"
	"pulse/internal/rules"
	"pulse/pkg/failure"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "missing rule is 404",
			err:  fmt.Errorf("rule abc: %w", rules.ErrNotFound),
			want: http.StatusNotFound,
		},
		{
			name: "missing dlq item is 404",
			err:  fmt.Errorf("item abc in queue q: %w", dlq.ErrItemNotFound),
			want: http.StatusNotFound,
		},
		{
			name: "validation is 400",
			err:  failure.New(failure.Validation, "bad input"),
			want: http.StatusBadRequest,
		},
		{
			name: "authentication is 401",
			err:  failure.New(failure.Authentication, "no key"),
			want: http.StatusUnauthorized,
		},
		{
			name: "rate limit is 429",
			err:  failure.New(failure.RateLimit, "slow down"),
			want: http.StatusTooManyRequests,
		},
		{
			name: "timeout is 504",
			err:  failure.New(failure.Timeout, "deadline exceeded"),
			want: http.StatusGatewayTimeout,
		},
		{
			name: "network is 502",
			err:  failure.New(failure.Network, "connection refused"),
			want: http.StatusBadGateway,
		},
		{
			name: "dependency is 502",
			err:  failure.New(failure.Dependency, "service unavailable"),
			want: http.StatusBadGateway,
		},
		{
			name: "unclassified is 500",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toHTTPStatus(tt.err))
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	err := failure.New(failure.Validation, "bad input").
		WithDetail("field", "event_pattern")

	resp := toErrorResponse(err)
	assert.Equal(t, "VALIDATION", resp.Code)
	assert.Contains(t, resp.Error, "bad input")
	assert.Equal(t, "event_pattern", resp.Details["field"])
}

func TestToErrorResponseUnclassified(t *testing.T) {
	resp := toErrorResponse(errors.New("boom"))
	assert.Equal(t, "boom", resp.Error)
	assert.Empty(t, resp.Details)
}
