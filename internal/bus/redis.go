package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/internal/constants"
	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/models"
)

// StreamBus is the Redis Streams backend: XADD for publishing,
// XREADGROUP/XACK consumer groups for competing-consumers delivery.
type StreamBus struct {
	*dispatcher
	client *redis.Client
	stream string
	logger logger.Logger

	// ClaimMinIdle is how long an entry must sit unacknowledged before
	// Consume claims it from another consumer of the group. ClaimInterval
	// is how often the sweep runs.
	ClaimMinIdle  time.Duration
	ClaimInterval time.Duration
}

func NewStreamBus(client *redis.Client, stream string, seen *SeenStore, store *dlq.Store, log logger.Logger) *StreamBus {
	return &StreamBus{
		dispatcher:    newDispatcher(seen, store, log),
		client:        client,
		stream:        stream,
		logger:        log,
		ClaimMinIdle:  constants.PendingMinIdle,
		ClaimInterval: constants.PendingClaimInterval,
	}
}

func (b *StreamBus) Publish(ctx context.Context, eventType string, data map[string]interface{}, source string) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event data: %w", err)
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"type":   eventType,
			"source": source,
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"data":   string(body),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append event to stream: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(eventType, source).Inc()
	b.logger.DebugwCtx(ctx, "Event published",
		"event_type", eventType,
		"source", source,
		"entry_id", id,
	)

	return id, nil
}

func (b *StreamBus) Subscribe(eventType string, h Handler) {
	b.subscribe(eventType, h)
}

// EnsureGroup creates the consumer group, creating the stream if needed.
// Creating an existing group is not an error.
func (b *StreamBus) EnsureGroup(ctx context.Context, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return nil
}

// Consume reads undelivered entries for the group until ctx is cancelled.
// Failed entries are pushed to the DLQ and left unacknowledged so the
// group redelivers them; handler errors never terminate the loop.
//
// On start the consumer's own pending entries are retried once, and a
// periodic sweep claims entries that sat idle on other consumers of the
// group for longer than ClaimMinIdle.
func (b *StreamBus) Consume(ctx context.Context, group, consumer string, count int64, block time.Duration) error {
	if err := b.EnsureGroup(ctx, group); err != nil {
		return err
	}

	consumeCtx := logging.WithConsumer(ctx, consumer)
	b.logger.InfowCtx(consumeCtx, "Started consuming",
		"stream", b.stream,
		"group", group,
	)

	b.drainPending(consumeCtx, group, consumer, count)

	lastClaim := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			b.logger.InfowCtx(consumeCtx, "Stopped consuming", "reason", "context canceled")
			return err
		}

		if time.Since(lastClaim) >= b.ClaimInterval {
			b.claimStale(consumeCtx, group, consumer, count)
			lastClaim = time.Now()
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    count,
			Block:    block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.ErrorwCtx(consumeCtx, "Error reading from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleEntry(consumeCtx, group, msg)
			}
		}
	}
}

// drainPending retries entries this consumer read but never acknowledged,
// typically after a crash mid-handling. Each pending entry gets one pass;
// entries that fail again stay pending for the claim sweep.
func (b *StreamBus) drainPending(ctx context.Context, group, consumer string, count int64) {
	cursor := "0"
	for {
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{b.stream, cursor},
			Count:    count,
		}).Result()
		if errors.Is(err, redis.Nil) {
			return
		}
		if err != nil {
			b.logger.ErrorwCtx(ctx, "Error draining pending entries", "error", err)
			return
		}

		drained := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleEntry(ctx, group, msg)
				cursor = msg.ID
				drained++
			}
		}
		if drained == 0 {
			return
		}
		b.logger.InfowCtx(ctx, "Retried pending entries", "count", drained)
	}
}

// claimStale takes over entries pending on other consumers of the group
// that have been idle for at least ClaimMinIdle.
func (b *StreamBus) claimStale(ctx context.Context, group, consumer string, count int64) {
	start := "0-0"
	for {
		msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   b.stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  b.ClaimMinIdle,
			Start:    start,
			Count:    count,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.ErrorwCtx(ctx, "Error claiming stale entries", "error", err)
			}
			return
		}

		for _, msg := range msgs {
			b.logger.WarnwCtx(ctx, "Claimed stale entry", "entry_id", msg.ID)
			b.handleEntry(ctx, group, msg)
		}

		if next == "0-0" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

func (b *StreamBus) handleEntry(ctx context.Context, group string, msg redis.XMessage) {
	event, err := decodeEntry(msg.ID, msg.Values)
	if err != nil {
		// Undecodable entries would redeliver forever; park them in the
		// DLQ and acknowledge.
		b.logger.ErrorwCtx(ctx, "Failed to decode entry, parking in DLQ",
			"entry_id", msg.ID,
			"error", err,
		)
		b.pushFailure(ctx, group, models.Event{ID: msg.ID}, msg.Values, err)
		b.ack(ctx, group, msg.ID)
		return
	}

	if b.deliver(ctx, group, event, msg.Values) {
		b.ack(ctx, group, msg.ID)
	}
}

func (b *StreamBus) ack(ctx context.Context, group, id string) {
	if err := b.client.XAck(ctx, b.stream, group, id).Err(); err != nil {
		b.logger.WarnwCtx(ctx, "Failed to acknowledge entry",
			"entry_id", id,
			"error", err,
		)
	}
}

func (b *StreamBus) Close() error {
	return nil
}

func decodeEntry(id string, values map[string]interface{}) (models.Event, error) {
	event := models.Event{ID: id}

	eventType, ok := values["type"].(string)
	if !ok || eventType == "" {
		return event, fmt.Errorf("entry %s has no type field", id)
	}
	event.Type = eventType

	if source, ok := values["source"].(string); ok {
		event.Source = source
	}

	if ts, ok := values["ts"].(string); ok {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return event, fmt.Errorf("entry %s has malformed timestamp: %w", id, err)
		}
		event.Timestamp = parsed
	}

	if data, ok := values["data"].(string); ok && data != "" {
		if err := json.Unmarshal([]byte(data), &event.Payload); err != nil {
			return event, fmt.Errorf("entry %s has malformed data: %w", id, err)
		}
	}
	if event.Payload == nil {
		event.Payload = make(map[string]interface{})
	}

	return event, nil
}
