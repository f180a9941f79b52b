package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/dlq"
	"pulse/internal/management"
	"pulse/internal/rules"
)

func createTestService(t *testing.T, infra *TestInfra, stream string) (management.Service, *dlq.Store, rules.Repository) {
	t.Helper()

	repo := rules.NewRepository(infra.PostgresDB)
	store := createTestDLQStore(infra, 100)
	b := createTestStreamBus(infra, stream)
	audit := management.NewAuditLogger(infra.PostgresDB)

	svc := management.NewService(repo, store, b, audit, 2, createTestLogger())
	return svc, store, repo
}

func TestServiceCreateRuleWritesAuditLog(t *testing.T) {
	infra := SetupTestInfra(t)
	svc, _, _ := createTestService(t, infra, "test:mgmt-create")
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, management.CreateRuleRequest{
		UserID:       "user-1",
		Name:         "notify on meeting",
		EventPattern: "calendar.event.created",
		Conditions:   map[string]interface{}{"title_contains": "meeting"},
		Actions: []rules.Action{
			{Type: "send_notification", Params: map[string]interface{}{"channel": "email"}},
		},
	}, "alice", "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled, "rules default to enabled")

	logs, err := svc.ListAuditLogs(ctx, rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0].Action)
	assert.Equal(t, "alice", logs[0].ChangedBy)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
}

func TestServiceUpdateRuleAuditsOldAndNew(t *testing.T) {
	infra := SetupTestInfra(t)
	svc, _, _ := createTestService(t, infra, "test:mgmt-update")
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, management.CreateRuleRequest{
		Name:         "original",
		EventPattern: "email.received",
		Actions:      []rules.Action{{Type: "create_task"}},
	}, "alice", "")
	require.NoError(t, err)

	newName := "renamed"
	updated, err := svc.UpdateRule(ctx, rule.ID, management.UpdateRuleRequest{
		Name: &newName,
	}, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "email.received", updated.EventPattern, "unset fields keep their values")

	logs, err := svc.ListAuditLogs(ctx, rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// Newest first.
	assert.Equal(t, "update", logs[0].Action)
	assert.Equal(t, "bob", logs[0].ChangedBy)
	assert.Contains(t, string(logs[0].OldValue), "original")
	assert.Contains(t, string(logs[0].NewValue), "renamed")
}

func TestServiceCreateRuleRejectsUnknownAction(t *testing.T) {
	infra := SetupTestInfra(t)
	svc, _, _ := createTestService(t, infra, "test:mgmt-validate")

	_, err := svc.CreateRule(context.Background(), management.CreateRuleRequest{
		Name:         "bad",
		EventPattern: "email.received",
		Actions:      []rules.Action{{Type: "launch_rocket"}},
	}, "alice", "")
	require.Error(t, err)
}

func TestServiceEnableDisableRule(t *testing.T) {
	infra := SetupTestInfra(t)
	svc, _, repo := createTestService(t, infra, "test:mgmt-toggle")
	ctx := context.Background()

	rule, err := svc.CreateRule(ctx, management.CreateRuleRequest{
		Name:         "toggle me",
		EventPattern: "email.received",
		Actions:      []rules.Action{{Type: "create_task"}},
	}, "alice", "")
	require.NoError(t, err)

	disabled, err := svc.SetRuleEnabled(ctx, rule.ID, false, "alice", "")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	count, err := repo.CountEnabled(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	logs, err := svc.ListAuditLogs(ctx, rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "disable", logs[0].Action)
}

func TestServiceReplayRepublishesParkedEntry(t *testing.T) {
	infra := SetupTestInfra(t)
	stream := "test:mgmt-replay"
	svc, store, _ := createTestService(t, infra, stream)
	ctx := context.Background()

	// A parked entry as the bus writes it: raw stream fields with the
	// payload still JSON-encoded.
	itemID, err := store.Push(ctx, "replay-group", dlq.Item{
		Payload: map[string]interface{}{
			"type":   "email.received",
			"source": "mail",
			"data":   `{"subject":"hello"}`,
		},
		ErrorDetails: dlq.ErrorDetails{Type: "NETWORK", Message: "connection refused"},
	})
	require.NoError(t, err)

	before, err := infra.RedisClient.XLen(ctx, stream).Result()
	require.NoError(t, err)

	ok, err := svc.ReplayDLQItem(ctx, "replay-group", itemID)
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := infra.RedisClient.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, before+1, after, "replay republishes the entry as a fresh event")

	length, err := store.Length(ctx, "replay-group")
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestServiceReplayKeepsUndecodableItem(t *testing.T) {
	infra := SetupTestInfra(t)
	svc, store, _ := createTestService(t, infra, "test:mgmt-replay-bad")
	ctx := context.Background()

	itemID, err := store.Push(ctx, "bad-group", dlq.Item{
		Payload: map[string]interface{}{"data": "{}"},
	})
	require.NoError(t, err)

	ok, err := svc.ReplayDLQItem(ctx, "bad-group", itemID)
	require.NoError(t, err)
	assert.False(t, ok, "an item without an event type cannot be replayed")

	items, err := svc.ListDLQ(ctx, "bad-group", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
}

func TestServicePublishEvent(t *testing.T) {
	infra := SetupTestInfra(t)
	stream := "test:mgmt-publish"
	svc, _, _ := createTestService(t, infra, stream)
	ctx := context.Background()

	entryID, err := svc.PublishEvent(ctx, management.PublishEventRequest{
		Type: "email.received",
		Data: map[string]interface{}{"subject": "hello"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entryID)

	length, err := infra.RedisClient.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
