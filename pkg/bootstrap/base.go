package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/dlq"
	"pulse/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Bus      bus.Bus
	DLQStore *dlq.Store
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBus wires the DLQ store and the configured bus backend. The Redis
// client is required even for the kafka backend, which keeps its
// idempotency state and DLQ there.
func (b *Base) InitBus(rdb *redis.Client) error {
	b.DLQStore = dlq.NewStore(rdb, b.Config.DLQ.MaxLength, b.Logger)

	eventBus, err := bus.New(b.Config.Bus, rdb, b.DLQStore, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}

	b.Bus = eventBus
	return nil
}

func (b *Base) ShutdownBus() []error {
	var errs []error

	if b.Bus != nil {
		if err := b.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBus()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
