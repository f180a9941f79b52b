package rules

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/logger"
	"pulse/pkg/metrics"
	"pulse/pkg/models"
)

// ActionRunner executes one configured action for a matched event.
type ActionRunner interface {
	Execute(ctx context.Context, action Action, event models.Event) (map[string]interface{}, error)
}

// Engine matches incoming events against stored rules and drives action
// execution.
type Engine struct {
	repo      Repository
	runner    ActionRunner
	evaluator *Evaluator
	logger    logger.Logger
}

func NewEngine(repo Repository, runner ActionRunner, log logger.Logger) (*Engine, error) {
	evaluator, err := NewEvaluator()
	if err != nil {
		return nil, err
	}

	return &Engine{
		repo:      repo,
		runner:    runner,
		evaluator: evaluator,
		logger:    log,
	}, nil
}

// HandleEvent is the bus handler adapter. Action failures are recorded per
// rule and never propagate; only a failure to load candidate rules is
// returned, so the bus redelivers the event once the store recovers.
func (e *Engine) HandleEvent(ctx context.Context, event models.Event) error {
	_, err := e.EvaluateEvent(ctx, event)
	return err
}

// EvaluateEvent runs every candidate rule against the event and returns
// one result per rule. Candidates are enabled rules in the event's owner
// scope or the shared scope whose pattern equals the event type exactly.
func (e *Engine) EvaluateEvent(ctx context.Context, event models.Event) ([]Execution, error) {
	candidates, err := e.repo.ListEnabled(ctx, event.OwnerID(), event.Type)
	if err != nil {
		return nil, err
	}

	results := make([]Execution, 0, len(candidates))
	for _, rule := range candidates {
		results = append(results, e.evaluateRule(ctx, rule, event))
	}
	return results, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule Rule, event models.Event) Execution {
	exec := Execution{
		RuleID:     rule.ID,
		EventID:    event.ID,
		ExecutedAt: time.Now().UTC(),
	}

	if !e.evaluator.Check(rule.Conditions, event) {
		exec.Status = StatusSkipped
		metrics.RuleEvaluationsTotal.WithLabelValues(rule.ID, string(StatusSkipped)).Inc()
		e.logger.DebugwCtx(ctx, "Rule conditions not met",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
		)
		return exec
	}

	result, actionErr := e.runActions(ctx, rule, event)
	if actionErr != nil {
		exec.Status = StatusFailed
		exec.Error = actionErr.Error()
		metrics.RuleEvaluationsTotal.WithLabelValues(rule.ID, string(StatusFailed)).Inc()
		e.logger.ErrorwCtx(ctx, "Rule action failed",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"error", actionErr,
		)
		e.record(ctx, &exec)
		return exec
	}

	exec.Status = StatusSuccess
	exec.Result = result
	metrics.RuleEvaluationsTotal.WithLabelValues(rule.ID, string(StatusSuccess)).Inc()

	e.record(ctx, &exec)
	if err := e.repo.MarkExecuted(ctx, rule.ID, exec.ExecutedAt); err != nil {
		e.logger.WarnwCtx(ctx, "Failed to update rule counters",
			"rule_id", rule.ID,
			"error", err,
		)
	}

	e.logger.InfowCtx(ctx, "Rule executed",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"actions", len(rule.Actions),
	)
	return exec
}

// runActions executes the rule's actions in declared order, timing each.
// The first failure stops the rest.
func (e *Engine) runActions(ctx context.Context, rule Rule, event models.Event) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(rule.Actions))

	for i, action := range rule.Actions {
		start := time.Now()
		result, err := e.runner.Execute(ctx, action, event)
		duration := time.Since(start)

		metrics.ObserveActionDuration(action.Type, duration)
		if err != nil {
			metrics.ActionExecutionsTotal.WithLabelValues(action.Type, "failed").Inc()
			return nil, err
		}
		metrics.ActionExecutionsTotal.WithLabelValues(action.Type, "success").Inc()

		results[actionKey(i, action)] = map[string]interface{}{
			"result":      result,
			"duration_ms": duration.Milliseconds(),
		}
	}

	return results, nil
}

func (e *Engine) record(ctx context.Context, exec *Execution) {
	if err := e.repo.RecordExecution(ctx, exec); err != nil {
		e.logger.ErrorwCtx(ctx, "Failed to record rule execution",
			"rule_id", exec.RuleID,
			"status", exec.Status,
			"error", err,
		)
	}
}

func actionKey(i int, action Action) string {
	return fmt.Sprintf("%d:%s", i, action.Type)
}

// StartGaugeReporter refreshes the active-rule gauge until ctx ends.
func (e *Engine) StartGaugeReporter(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.reportActiveRules(ctx)
	for {
		select {
		case <-ticker.C:
			e.reportActiveRules(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) reportActiveRules(ctx context.Context) {
	count, err := e.repo.CountEnabled(ctx)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Failed to count enabled rules", "error", err)
		return
	}
	metrics.SetActiveRules(count)
}
