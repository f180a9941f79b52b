package constants

import "time"

const (
	DefaultStream        = "automation:events"
	DefaultConsumerGroup = "automation-engine"
)

const (
	DefaultReadCount    = 10
	DefaultBlockTimeout = 5 * time.Second
)

const (
	PendingClaimInterval = 30 * time.Second
	PendingMinIdle       = time.Minute
)

const (
	IdempotencyKeyPrefix  = "bus:seen:"
	DefaultIdempotencyCap = 10000
	DLQKeyPrefix          = "dlq:"
	DefaultDLQMaxLength   = 1000
)

const (
	DefaultReplayConcurrency = 5
)

const (
	DefaultRulesReloadSeconds = 60
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	ProviderRetryStep = 300 * time.Millisecond
)
