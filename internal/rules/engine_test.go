package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/logger"
	"pulse/pkg/models"
)

type fakeRepo struct {
	Repository

	rules      []Rule
	listErr    error
	recorded   []Execution
	recordErr  error
	marked     []string
	markErr    error
	enabledCnt int
}

func (f *fakeRepo) ListEnabled(ctx context.Context, scope, pattern string) ([]Rule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Rule, 0, len(f.rules))
	for _, r := range f.rules {
		if r.EventPattern == pattern {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) RecordExecution(ctx context.Context, exec *Execution) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, *exec)
	return nil
}

func (f *fakeRepo) MarkExecuted(ctx context.Context, ruleID string, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, ruleID)
	return nil
}

func (f *fakeRepo) CountEnabled(ctx context.Context) (int, error) {
	return f.enabledCnt, nil
}

type fakeRunner struct {
	calls []Action
	errOn string
}

func (f *fakeRunner) Execute(ctx context.Context, action Action, event models.Event) (map[string]interface{}, error) {
	f.calls = append(f.calls, action)
	if action.Type == f.errOn {
		return nil, errors.New("delivery refused")
	}
	return map[string]interface{}{"ok": true}, nil
}

func newTestEngine(t *testing.T, repo Repository, runner ActionRunner) *Engine {
	t.Helper()
	engine, err := NewEngine(repo, runner, logger.NopLogger())
	require.NoError(t, err)
	return engine
}

func TestEvaluateEventExecutesMatchingRule(t *testing.T) {
	repo := &fakeRepo{rules: []Rule{{
		ID:           "rule-1",
		Name:         "notify on meeting",
		EventPattern: "calendar.event.created",
		Conditions:   map[string]interface{}{"title_contains": "meeting"},
		Actions: []Action{
			{Type: "send_notification", Params: map[string]interface{}{"channel": "email"}},
		},
		Enabled: true,
	}}}
	runner := &fakeRunner{}
	engine := newTestEngine(t, repo, runner)

	event := testEvent("calendar.event.created", map[string]interface{}{
		"title": "Team Meeting",
	})

	results, err := engine.EvaluateEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, "rule-1", results[0].RuleID)
	assert.Equal(t, "evt-1", results[0].EventID)
	assert.Contains(t, results[0].Result, "0:send_notification")

	require.Len(t, repo.recorded, 1)
	assert.Equal(t, StatusSuccess, repo.recorded[0].Status)
	assert.Equal(t, []string{"rule-1"}, repo.marked, "counters bump on success")
	require.Len(t, runner.calls, 1)
}

func TestEvaluateEventSkipsWhenConditionsFail(t *testing.T) {
	repo := &fakeRepo{rules: []Rule{{
		ID:           "rule-1",
		EventPattern: "calendar.event.created",
		Conditions:   map[string]interface{}{"title_contains": "standup"},
		Actions:      []Action{{Type: "send_notification"}},
		Enabled:      true,
	}}}
	runner := &fakeRunner{}
	engine := newTestEngine(t, repo, runner)

	event := testEvent("calendar.event.created", map[string]interface{}{
		"title": "Team Meeting",
	})

	results, err := engine.EvaluateEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Empty(t, runner.calls)
	assert.Empty(t, repo.recorded, "skipped evaluations are not persisted")
	assert.Empty(t, repo.marked)
}

func TestEvaluateEventRecordsActionFailure(t *testing.T) {
	repo := &fakeRepo{rules: []Rule{{
		ID:           "rule-1",
		EventPattern: "email.received",
		Actions: []Action{
			{Type: "create_task"},
			{Type: "send_notification"},
		},
		Enabled: true,
	}}}
	runner := &fakeRunner{errOn: "create_task"}
	engine := newTestEngine(t, repo, runner)

	results, err := engine.EvaluateEvent(context.Background(), testEvent("email.received", nil))
	require.NoError(t, err, "action failures stay per rule and never fail the event")
	require.Len(t, results, 1)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "delivery refused")

	require.Len(t, repo.recorded, 1)
	assert.Equal(t, StatusFailed, repo.recorded[0].Status)
	assert.Empty(t, repo.marked, "counters do not bump on failure")
	assert.Len(t, runner.calls, 1, "first failure stops the remaining actions")
}

func TestEvaluateEventRunsActionsInOrder(t *testing.T) {
	repo := &fakeRepo{rules: []Rule{{
		ID:           "rule-1",
		EventPattern: "email.received",
		Actions: []Action{
			{Type: "create_task"},
			{Type: "send_notification"},
		},
		Enabled: true,
	}}}
	runner := &fakeRunner{}
	engine := newTestEngine(t, repo, runner)

	results, err := engine.EvaluateEvent(context.Background(), testEvent("email.received", nil))
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "create_task", runner.calls[0].Type)
	assert.Equal(t, "send_notification", runner.calls[1].Type)
	assert.Contains(t, results[0].Result, "0:create_task")
	assert.Contains(t, results[0].Result, "1:send_notification")
}

func TestEvaluateEventPropagatesRepositoryError(t *testing.T) {
	repo := &fakeRepo{listErr: errors.New("connection reset")}
	engine := newTestEngine(t, repo, &fakeRunner{})

	err := engine.HandleEvent(context.Background(), testEvent("email.received", nil))
	require.Error(t, err, "load failures surface so the bus redelivers")
}

func TestEvaluateEventNoCandidates(t *testing.T) {
	repo := &fakeRepo{}
	runner := &fakeRunner{}
	engine := newTestEngine(t, repo, runner)

	results, err := engine.EvaluateEvent(context.Background(), testEvent("unknown.event", nil))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, runner.calls)
}
