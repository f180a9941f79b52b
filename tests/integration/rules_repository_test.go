package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/rules"
	"pulse/pkg/models"
)

func TestRuleRepositoryCRUD(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("user-1", "notify on meeting", "calendar.event.created")
	rule.Conditions = map[string]interface{}{"title_contains": "meeting"}

	require.NoError(t, repo.Create(ctx, rule))
	require.NotEmpty(t, rule.ID, "Create assigns an id")

	got, err := repo.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "notify on meeting", got.Name)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, rules.TriggerEvent, got.TriggerType)
	assert.Equal(t, map[string]interface{}{"title_contains": "meeting"}, got.Conditions)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "send_notification", got.Actions[0].Type)
	assert.True(t, got.Enabled)
	assert.Zero(t, got.ExecutionCount)
	assert.Nil(t, got.LastExecuted)

	time.Sleep(timestampDelay)
	got.Name = "renamed"
	got.EventPattern = "email.received"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "email.received", updated.EventPattern)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, repo.Delete(ctx, rule.ID))

	_, err = repo.Get(ctx, rule.ID)
	require.ErrorIs(t, err, rules.ErrNotFound)
}

func TestRuleRepositoryNotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	missing := "00000000-0000-0000-0000-000000000000"

	_, err := repo.Get(ctx, missing)
	assert.ErrorIs(t, err, rules.ErrNotFound)

	err = repo.Update(ctx, &rules.Rule{ID: missing, Name: "x", EventPattern: "y"})
	assert.ErrorIs(t, err, rules.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, missing), rules.ErrNotFound)
	assert.ErrorIs(t, repo.SetEnabled(ctx, missing, false), rules.ErrNotFound)
}

func TestRuleRepositoryListEnabledScoping(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	owned := createTestRule("user-1", "owned", "email.received")
	shared := createTestRule(models.SystemScope, "shared", "email.received")
	other := createTestRule("user-2", "other user", "email.received")
	disabled := createTestRule("user-1", "disabled", "email.received")
	disabled.Enabled = false
	otherPattern := createTestRule("user-1", "other pattern", "calendar.event.created")

	for _, r := range []*rules.Rule{owned, shared, other, disabled, otherPattern} {
		require.NoError(t, repo.Create(ctx, r))
	}

	matched, err := repo.ListEnabled(ctx, "user-1", "email.received")
	require.NoError(t, err)

	names := make([]string, 0, len(matched))
	for _, r := range matched {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"owned", "shared"}, names,
		"candidates are the owner's rules plus the shared scope, same pattern, enabled only")

	count, err := repo.CountEnabled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRuleRepositorySetEnabled(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("user-1", "toggle me", "email.received")
	require.NoError(t, repo.Create(ctx, rule))

	require.NoError(t, repo.SetEnabled(ctx, rule.ID, false))

	matched, err := repo.ListEnabled(ctx, "user-1", "email.received")
	require.NoError(t, err)
	assert.Empty(t, matched)

	require.NoError(t, repo.SetEnabled(ctx, rule.ID, true))

	matched, err = repo.ListEnabled(ctx, "user-1", "email.received")
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestRuleRepositoryMarkExecuted(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("user-1", "counted", "email.received")
	require.NoError(t, repo.Create(ctx, rule))

	first := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.MarkExecuted(ctx, rule.ID, first))
	require.NoError(t, repo.MarkExecuted(ctx, rule.ID, first.Add(time.Second)))

	got, err := repo.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExecutionCount)
	require.NotNil(t, got.LastExecuted)
	assert.WithinDuration(t, first.Add(time.Second), *got.LastExecuted, time.Second)
}

func TestRuleRepositoryExecutions(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("user-1", "audited", "email.received")
	require.NoError(t, repo.Create(ctx, rule))

	success := &rules.Execution{
		RuleID:     rule.ID,
		EventID:    "evt-1",
		Status:     rules.StatusSuccess,
		Result:     map[string]interface{}{"0:send_notification": map[string]interface{}{"sent": true}},
		ExecutedAt: time.Now().UTC().Add(-time.Minute),
	}
	failed := &rules.Execution{
		RuleID:     rule.ID,
		EventID:    "evt-2",
		Status:     rules.StatusFailed,
		Error:      "delivery refused",
		ExecutedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.RecordExecution(ctx, success))
	require.NoError(t, repo.RecordExecution(ctx, failed))

	execs, err := repo.ListExecutions(ctx, rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, execs, 2)

	// Newest first.
	assert.Equal(t, rules.StatusFailed, execs[0].Status)
	assert.Equal(t, "delivery refused", execs[0].Error)
	assert.Equal(t, rules.StatusSuccess, execs[1].Status)
	assert.Contains(t, execs[1].Result, "0:send_notification")
}

func TestRuleExecutionsDeletedWithRule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("user-1", "cascade", "email.received")
	require.NoError(t, repo.Create(ctx, rule))
	require.NoError(t, repo.RecordExecution(ctx, &rules.Execution{
		RuleID:  rule.ID,
		EventID: "evt-1",
		Status:  rules.StatusSuccess,
	}))

	require.NoError(t, repo.Delete(ctx, rule.ID))

	execs, err := repo.ListExecutions(ctx, rule.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, execs)
}
