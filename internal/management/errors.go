package management

import (
	"errors"
	"net/http"

	"pulse/internal/dlq"
	"pulse/internal/rules"
	"pulse/pkg/failure"
)

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// toHTTPStatus maps domain errors to HTTP status codes. Not-found
// sentinels win over the failure taxonomy so a missing rule is a 404
// rather than a generic validation error.
func toHTTPStatus(err error) int {
	switch {
	case errors.Is(err, rules.ErrNotFound), errors.Is(err, dlq.ErrItemNotFound):
		return http.StatusNotFound
	}

	switch failure.ReasonOf(err) {
	case failure.Validation:
		return http.StatusBadRequest
	case failure.Authentication:
		return http.StatusUnauthorized
	case failure.RateLimit:
		return http.StatusTooManyRequests
	case failure.Timeout:
		return http.StatusGatewayTimeout
	case failure.Dependency, failure.Network, failure.Integration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Error: err.Error(),
		Code:  failure.ReasonOf(err).String(),
	}

	var fe *failure.Error
	if errors.As(err, &fe) && len(fe.Details) > 0 {
		resp.Details = fe.Details
	}
	return resp
}
