package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBus(cfg.Bus); err != nil {
		errs = append(errs, err)
	}

	if err := validateDLQ(cfg.DLQ); err != nil {
		errs = append(errs, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateBus(cfg BusConfig) error {
	switch cfg.Type {
	case "redis":
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "bus.kafka.brokers",
				Message: "at least one broker is required for the kafka bus",
			}
		}
	default:
		return &ValidationError{
			Field:   "bus.type",
			Message: fmt.Sprintf("unknown bus type %q, expected redis or kafka", cfg.Type),
		}
	}

	if cfg.Group == "" {
		return &ValidationError{
			Field:   "bus.group",
			Message: "consumer group is required",
		}
	}

	if cfg.ReadCount <= 0 {
		return &ValidationError{
			Field:   "bus.read_count",
			Message: "read count must be positive",
		}
	}

	if cfg.IdempotencyCap <= 0 {
		return &ValidationError{
			Field:   "bus.idempotency_cap",
			Message: "idempotency cap must be positive",
		}
	}

	return nil
}

func validateDLQ(cfg DLQConfig) error {
	if cfg.MaxLength <= 0 {
		return &ValidationError{
			Field:   "dlq.max_length",
			Message: "max length must be positive",
		}
	}
	if cfg.ReplayConcurrency <= 0 {
		return &ValidationError{
			Field:   "dlq.replay_concurrency",
			Message: "replay concurrency must be positive",
		}
	}
	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if cfg.Threshold <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.threshold",
			Message: "threshold must be positive",
		}
	}
	if cfg.ResetTimeout <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.reset_timeout",
			Message: "reset timeout must be positive",
		}
	}
	return nil
}
