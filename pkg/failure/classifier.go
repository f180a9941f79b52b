package failure

import (
	"context"
	"errors"
	"net"
	"strings"
)

// keywordRule maps message substrings to a Reason. Order matters: the first
// rule with any matching keyword wins, so a message containing both an auth
// and a timeout term classifies as whichever category appears first here.
type keywordRule struct {
	reason   Reason
	keywords []string
}

var keywordRules = []keywordRule{
	{Network, []string{"network", "connection refused", "connection reset", "no such host", "dns", "unreachable", "broken pipe"}},
	{Authentication, []string{"auth", "unauthorized", "forbidden", "token", "credential", "permission denied", "401", "403"}},
	{RateLimit, []string{"rate limit", "too many requests", "quota", "throttl", "429"}},
	{Resource, []string{"memory", "cpu", "disk", "out of space", "resource exhausted"}},
	{Timeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{Validation, []string{"validation", "invalid", "schema", "malformed", "bad request"}},
	{Dependency, []string{"dependency", "unavailable", "503", "service down"}},
	{Integration, []string{"integration", "api error", "upstream", "gateway"}},
}

// Classify maps an error to a Reason. Typed errors are checked before the
// keyword fallback so integration boundaries that return structured errors
// keep their classification regardless of message wording.
func Classify(err error) Reason {
	if err == nil {
		return Unknown
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Network
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Reason {
	msg = strings.ToLower(msg)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return rule.reason
			}
		}
	}
	return Unknown
}

// ClassifyError wraps err as an *Error with its classified reason. Already
// classified errors are returned as-is.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(err, Classify(err))
}
