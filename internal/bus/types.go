package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/internal/config"
	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/pkg/models"
)

// Handler processes a decoded event. Handlers must tolerate redelivery:
// delivery is at-least-once and only handler execution is deduplicated.
type Handler func(ctx context.Context, event models.Event) error

type Bus interface {
	// Publish appends an event to the durable log and returns its entry
	// id. It never blocks on consumers.
	Publish(ctx context.Context, eventType string, data map[string]interface{}, source string) (string, error)

	// Subscribe registers an in-process handler for an event type.
	// Handlers run in registration order.
	Subscribe(eventType string, h Handler)

	// Consume runs a consumer-group delivery loop until ctx is cancelled.
	Consume(ctx context.Context, group, consumer string, count int64, block time.Duration) error

	Close() error
}

// New builds the configured bus backend. Both backends share the Redis
// idempotency set and DLQ store, so consumers can be moved between them
// without losing dedup state.
func New(cfg config.BusConfig, rdb *redis.Client, store *dlq.Store, log logger.Logger) (Bus, error) {
	seen := NewSeenStore(rdb, cfg.IdempotencyCap)

	switch cfg.Type {
	case "redis":
		return NewStreamBus(rdb, cfg.Stream, seen, store, log), nil
	case "kafka":
		return NewKafkaBus(cfg.Kafka, seen, store, log), nil
	default:
		return nil, fmt.Errorf("unknown bus type: %s", cfg.Type)
	}
}
