// Package dlq stores failed work items in bounded per-queue Redis lists so
// every consumer instance in a group sees the same failure backlog.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/pkg/metrics"
)

// ErrItemNotFound is returned when a replay targets an id not present in
// the queue.
var ErrItemNotFound = errors.New("dlq item not found")

type ErrorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Item struct {
	ID           string                 `json:"id"`
	QueueName    string                 `json:"queue_name"`
	Payload      map[string]interface{} `json:"payload"`
	ErrorDetails ErrorDetails           `json:"error_details"`
	FailedAt     time.Time              `json:"failed_at"`
	RetryCount   int                    `json:"retry_count"`
	Context      map[string]interface{} `json:"context"`
}

type Store struct {
	client    *redis.Client
	maxLength int64
	logger    logger.Logger
}

func NewStore(client *redis.Client, maxLength int64, log logger.Logger) *Store {
	if maxLength <= 0 {
		maxLength = constants.DefaultDLQMaxLength
	}
	return &Store{
		client:    client,
		maxLength: maxLength,
		logger:    log,
	}
}

func key(queue string) string {
	return constants.DLQKeyPrefix + queue
}

// Push appends an item and trims the queue to its cap, evicting the oldest
// entries first. The list stays in insertion order.
func (s *Store) Push(ctx context.Context, queue string, item Item) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.QueueName == "" {
		item.QueueName = queue
	}
	if item.FailedAt.IsZero() {
		item.FailedAt = time.Now().UTC()
	}

	body, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ item: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(queue), body)
	pipe.LTrim(ctx, key(queue), -s.maxLength, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to push DLQ item: %w", err)
	}

	metrics.DLQItemsTotal.WithLabelValues(queue, item.ErrorDetails.Type).Inc()
	s.logger.WarnwCtx(ctx, "Item pushed to DLQ",
		"queue", queue,
		"item_id", item.ID,
		"error_type", item.ErrorDetails.Type,
	)

	return item.ID, nil
}

// List returns up to limit items in insertion order (oldest first).
func (s *Store) List(ctx context.Context, queue string, limit int64) ([]Item, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}

	raw, err := s.client.LRange(ctx, key(queue), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ %s: %w", queue, err)
	}

	items := make([]Item, 0, len(raw))
	for _, body := range raw {
		var item Item
		if err := json.Unmarshal([]byte(body), &item); err != nil {
			s.logger.WarnwCtx(ctx, "Skipping undecodable DLQ entry", "queue", queue, "error", err)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Store) Length(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.LLen(ctx, key(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read DLQ length for %s: %w", queue, err)
	}
	return n, nil
}

// Purge drops the whole queue and returns how many items it held.
func (s *Store) Purge(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.LLen(ctx, key(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read DLQ length for %s: %w", queue, err)
	}
	if err := s.client.Del(ctx, key(queue)).Err(); err != nil {
		return 0, fmt.Errorf("failed to purge DLQ %s: %w", queue, err)
	}
	return n, nil
}

// find locates an item by id and returns its index and raw encoding.
func (s *Store) find(ctx context.Context, queue, id string) (int64, string, *Item, error) {
	raw, err := s.client.LRange(ctx, key(queue), 0, -1).Result()
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to scan DLQ %s: %w", queue, err)
	}

	for i, body := range raw {
		var item Item
		if err := json.Unmarshal([]byte(body), &item); err != nil {
			continue
		}
		if item.ID == id {
			return int64(i), body, &item, nil
		}
	}

	return 0, "", nil, fmt.Errorf("item %s in queue %s: %w", id, queue, ErrItemNotFound)
}
