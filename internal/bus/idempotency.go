package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulse/internal/constants"
)

// SeenStore records delivered entry ids per consumer group in a Redis
// sorted set scored by insertion time. Eviction is deterministic and
// oldest-first once the cap is exceeded.
type SeenStore struct {
	client *redis.Client
	cap    int64
}

func NewSeenStore(client *redis.Client, cap int64) *SeenStore {
	if cap <= 0 {
		cap = constants.DefaultIdempotencyCap
	}
	return &SeenStore{client: client, cap: cap}
}

func seenKey(group string) string {
	return constants.IdempotencyKeyPrefix + group
}

// Seen reports whether the entry id was already processed by the group.
func (s *SeenStore) Seen(ctx context.Context, group, id string) (bool, error) {
	err := s.client.ZScore(ctx, seenKey(group), id).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency set: %w", err)
	}
	return true, nil
}

// Mark records the entry id as processed and evicts the oldest members
// beyond the cap.
func (s *SeenStore) Mark(ctx context.Context, group, id string) error {
	now := float64(time.Now().UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, seenKey(group), redis.Z{Score: now, Member: id})
	card := pipe.ZCard(ctx, seenKey(group))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark entry processed: %w", err)
	}

	if over := card.Val() - s.cap; over > 0 {
		if err := s.client.ZRemRangeByRank(ctx, seenKey(group), 0, over-1).Err(); err != nil {
			return fmt.Errorf("failed to evict idempotency entries: %w", err)
		}
	}

	return nil
}

// Size returns the current cardinality of the group's set.
func (s *SeenStore) Size(ctx context.Context, group string) (int64, error) {
	return s.client.ZCard(ctx, seenKey(group)).Result()
}
