package failure

// Reason classifies why an operation failed. The taxonomy drives retry
// policy selection and DLQ/metric labels.
type Reason string

const (
	Validation     Reason = "VALIDATION"
	Dependency     Reason = "DEPENDENCY"
	Runtime        Reason = "RUNTIME"
	Integration    Reason = "INTEGRATION"
	Timeout        Reason = "TIMEOUT"
	Resource       Reason = "RESOURCE"
	Network        Reason = "NETWORK"
	Authentication Reason = "AUTHENTICATION"
	RateLimit      Reason = "RATE_LIMIT"
	Unknown        Reason = "UNKNOWN"
)

// Retryable reports whether the reason permits retries at all. VALIDATION
// and AUTHENTICATION never do, regardless of attempts remaining.
func (r Reason) Retryable() bool {
	switch r {
	case Validation, Authentication:
		return false
	default:
		return true
	}
}

func (r Reason) String() string {
	return string(r)
}
