package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"pulse/pkg/metrics"
)

// ReplayFunc re-executes the failed work described by an item. A nil return
// means the item is resolved and leaves the queue.
type ReplayFunc func(ctx context.Context, item Item) error

// Replay re-runs a single item. On success the item is removed and true is
// returned; on failure the item stays with its retry count incremented.
func (s *Store) Replay(ctx context.Context, queue, id string, fn ReplayFunc) (bool, error) {
	idx, raw, item, err := s.find(ctx, queue, id)
	if err != nil {
		return false, err
	}

	if replayErr := fn(ctx, *item); replayErr != nil {
		item.RetryCount++
		body, err := json.Marshal(item)
		if err != nil {
			return false, fmt.Errorf("failed to marshal DLQ item: %w", err)
		}
		// The index can drift if the queue was trimmed concurrently; a
		// failed LSET leaves the original entry in place, which only
		// loses the counter bump.
		if err := s.client.LSet(ctx, key(queue), idx, body).Err(); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to update DLQ retry count",
				"queue", queue,
				"item_id", id,
				"error", err,
			)
		}
		metrics.DLQReplaysTotal.WithLabelValues(queue, "failed").Inc()
		s.logger.WarnwCtx(ctx, "DLQ replay failed",
			"queue", queue,
			"item_id", id,
			"retry_count", item.RetryCount,
			"error", replayErr,
		)
		return false, nil
	}

	if err := s.client.LRem(ctx, key(queue), 1, raw).Err(); err != nil {
		return false, fmt.Errorf("failed to remove replayed DLQ item: %w", err)
	}

	metrics.DLQReplaysTotal.WithLabelValues(queue, "replayed").Inc()
	s.logger.InfowCtx(ctx, "DLQ item replayed",
		"queue", queue,
		"item_id", id,
	)
	return true, nil
}

// ReplayAll replays every item currently in the queue, bounding concurrency
// so downstream collaborators are not overwhelmed. Returns how many items
// were resolved and how many failed again.
func (s *Store) ReplayAll(ctx context.Context, queue string, concurrency int64, fn ReplayFunc) (replayed, failed int, err error) {
	items, err := s.List(ctx, queue, s.maxLength)
	if err != nil {
		return 0, 0, err
	}

	sem := semaphore.NewWeighted(concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(item Item) {
			defer wg.Done()
			defer sem.Release(1)

			ok, replayErr := s.Replay(ctx, queue, item.ID, fn)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case replayErr != nil:
				failed++
			case ok:
				replayed++
			default:
				failed++
			}
		}(item)
	}

	wg.Wait()
	return replayed, failed, ctx.Err()
}
