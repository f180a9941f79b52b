package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/dlq"
)

func pushTestItem(t *testing.T, store *dlq.Store, queue, id string) string {
	t.Helper()

	itemID, err := store.Push(context.Background(), queue, dlq.Item{
		ID:      id,
		Payload: map[string]interface{}{"type": "email.received", "data": "{}"},
		ErrorDetails: dlq.ErrorDetails{
			Type:    "NETWORK",
			Message: "connection refused",
		},
	})
	require.NoError(t, err)
	return itemID
}

func TestDLQPushAndList(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)
	ctx := context.Background()

	first := pushTestItem(t, store, "list-queue", "")
	second := pushTestItem(t, store, "list-queue", "")

	items, err := store.List(ctx, "list-queue", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Insertion order, oldest first.
	assert.Equal(t, first, items[0].ID)
	assert.Equal(t, second, items[1].ID)
	assert.Equal(t, "list-queue", items[0].QueueName)
	assert.Equal(t, "NETWORK", items[0].ErrorDetails.Type)
	assert.False(t, items[0].FailedAt.IsZero())

	length, err := store.Length(ctx, "list-queue")
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)
}

func TestDLQEvictsOldestBeyondCap(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pushTestItem(t, store, "capped-queue", fmt.Sprintf("item-%d", i))
	}

	items, err := store.List(ctx, "capped-queue", 10)
	require.NoError(t, err)
	require.Len(t, items, 3, "queue is bounded at its cap")

	assert.Equal(t, "item-2", items[0].ID)
	assert.Equal(t, "item-4", items[2].ID)
}

func TestDLQReplaySuccessRemovesItem(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)
	ctx := context.Background()

	itemID := pushTestItem(t, store, "replay-queue", "")

	var replayed dlq.Item
	ok, err := store.Replay(ctx, "replay-queue", itemID, func(ctx context.Context, item dlq.Item) error {
		replayed = item
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, itemID, replayed.ID)

	length, err := store.Length(ctx, "replay-queue")
	require.NoError(t, err)
	assert.Zero(t, length, "a resolved item leaves the queue")
}

func TestDLQReplayFailureIncrementsRetryCount(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)
	ctx := context.Background()

	itemID := pushTestItem(t, store, "retry-queue", "")

	ok, err := store.Replay(ctx, "retry-queue", itemID, func(ctx context.Context, item dlq.Item) error {
		return errors.New("still broken")
	})
	require.NoError(t, err, "a failed replay is not an error, the item just stays")
	assert.False(t, ok)

	items, err := store.List(ctx, "retry-queue", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)

	// Failing again keeps counting.
	_, err = store.Replay(ctx, "retry-queue", itemID, func(ctx context.Context, item dlq.Item) error {
		return errors.New("still broken")
	})
	require.NoError(t, err)

	items, err = store.List(ctx, "retry-queue", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].RetryCount)
}

func TestDLQReplayUnknownItem(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)

	_, err := store.Replay(context.Background(), "empty-queue", "missing", func(ctx context.Context, item dlq.Item) error {
		return nil
	})
	require.ErrorIs(t, err, dlq.ErrItemNotFound)
}

func TestDLQReplayAll(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		pushTestItem(t, store, "bulk-queue", fmt.Sprintf("bulk-%d", i))
	}

	// Odd-numbered items keep failing.
	replayed, failed, err := store.ReplayAll(ctx, "bulk-queue", 2, func(ctx context.Context, item dlq.Item) error {
		if item.ID == "bulk-1" || item.ID == "bulk-3" {
			return errors.New("still broken")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)
	assert.Equal(t, 2, failed)

	length, err := store.Length(ctx, "bulk-queue")
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)
}

func TestDLQPurge(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	store := createTestDLQStore(infra, 100)
	ctx := context.Background()

	pushTestItem(t, store, "purge-queue", "")
	pushTestItem(t, store, "purge-queue", "")

	removed, err := store.Purge(ctx, "purge-queue")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	length, err := store.Length(ctx, "purge-queue")
	require.NoError(t, err)
	assert.Zero(t, length)
}
