package bus

import (
	"context"
	"sync"
	"time"

	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/pkg/failure"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/models"
)

// dispatcher holds the handler registry and the per-entry delivery logic
// shared by the stream and kafka backends.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	seen   *SeenStore
	dlq    *dlq.Store
	logger logger.Logger
}

func newDispatcher(seen *SeenStore, store *dlq.Store, log logger.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[string][]Handler),
		seen:     seen,
		dlq:      store,
		logger:   log,
	}
}

func (d *dispatcher) subscribe(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// WildcardType subscribes a handler to every event type. Wildcard handlers
// run after the type's own handlers.
const WildcardType = "*"

func (d *dispatcher) handlersFor(eventType string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	hs := make([]Handler, 0, len(d.handlers[eventType])+len(d.handlers[WildcardType]))
	hs = append(hs, d.handlers[eventType]...)
	if eventType != WildcardType {
		hs = append(hs, d.handlers[WildcardType]...)
	}
	return hs
}

// deliver runs one decoded entry through the group's handlers. It returns
// true when the entry should be acknowledged: either every handler
// succeeded (and the id was marked processed), or the id had already been
// processed. A false return means the entry failed, was pushed to the DLQ,
// and must stay pending for redelivery.
func (d *dispatcher) deliver(ctx context.Context, group string, event models.Event, raw map[string]interface{}) bool {
	ctx = logging.WithEventID(ctx, event.ID)

	processed, err := d.seen.Seen(ctx, group, event.ID)
	if err != nil {
		// Cannot prove the entry is new; redelivering later is safer
		// than double-running handlers now.
		d.logger.ErrorwCtx(ctx, "Idempotency check failed, leaving entry pending", "error", err)
		return false
	}
	if processed {
		metrics.IdempotentSkipsTotal.WithLabelValues(group).Inc()
		d.logger.DebugwCtx(ctx, "Skipping already-processed entry")
		return true
	}

	start := time.Now()
	if err := d.runHandlers(ctx, event); err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(group, "failed").Inc()
		metrics.ObserveHandlerDuration(event.Type, "failed", time.Since(start))
		d.pushFailure(ctx, group, event, raw, err)
		return false
	}
	metrics.EventsConsumedTotal.WithLabelValues(group, "success").Inc()
	metrics.ObserveHandlerDuration(event.Type, "success", time.Since(start))

	if err := d.seen.Mark(ctx, group, event.ID); err != nil {
		d.logger.WarnwCtx(ctx, "Failed to mark entry processed", "error", err)
	}
	return true
}

func (d *dispatcher) runHandlers(ctx context.Context, event models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.RecoverPanic(r)
		}
	}()

	for _, h := range d.handlersFor(event.Type) {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatcher) pushFailure(ctx context.Context, group string, event models.Event, raw map[string]interface{}, handlerErr error) {
	fe := failure.ClassifyError(handlerErr)

	item := dlq.Item{
		ID:        event.ID,
		QueueName: group,
		Payload:   raw,
		ErrorDetails: dlq.ErrorDetails{
			Type:    fe.Reason.String(),
			Message: fe.Message,
		},
		Context: map[string]interface{}{
			"group":      group,
			"event_type": event.Type,
			"source":     event.Source,
		},
	}

	if _, err := d.dlq.Push(ctx, group, item); err != nil {
		d.logger.ErrorwCtx(ctx, "Failed to push entry to DLQ", "error", err)
	}

	d.logger.ErrorwCtx(ctx, "Handler failed, entry left pending for redelivery",
		"event_type", event.Type,
		"reason", fe.Reason,
		"error", handlerErr,
	)
}
