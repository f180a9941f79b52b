package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulse/pkg/models"
)

// ErrNotFound is returned when a rule id does not exist.
var ErrNotFound = errors.New("rule not found")

type Repository interface {
	ListEnabled(ctx context.Context, scope, pattern string) ([]Rule, error)
	List(ctx context.Context, scope string) ([]Rule, error)
	Get(ctx context.Context, id string) (*Rule, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	CountEnabled(ctx context.Context) (int, error)

	RecordExecution(ctx context.Context, exec *Execution) error
	MarkExecuted(ctx context.Context, ruleID string, at time.Time) error
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const ruleColumns = `id, user_id, name, trigger_type, event_pattern, conditions, actions, enabled, execution_count, last_executed, created_at, updated_at`

func (r *PostgresRepository) ListEnabled(ctx context.Context, scope, pattern string) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE enabled = true
		  AND event_pattern = $1
		  AND (user_id = $2 OR user_id = $3)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, pattern, scope, models.SystemScope)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func (r *PostgresRepository) List(ctx context.Context, scope string) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	args := []interface{}{}
	if scope != "" {
		query += ` WHERE user_id = $1`
		args = append(args, scope)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.UserID == "" {
		rule.UserID = models.SystemScope
	}
	if rule.TriggerType == "" {
		rule.TriggerType = TriggerEvent
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditions, actions, err := marshalRuleJSON(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rules (id, user_id, name, trigger_type, event_pattern, conditions, actions, enabled, execution_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.UserID, rule.Name, rule.TriggerType, rule.EventPattern,
		conditions, actions, rule.Enabled, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	conditions, actions, err := marshalRuleJSON(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE rules
		SET name = $2, trigger_type = $3, event_pattern = $4, conditions = $5,
		    actions = $6, enabled = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.TriggerType, rule.EventPattern,
		conditions, actions, rule.Enabled, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rules SET enabled = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set rule enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) CountEnabled(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE enabled = true`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) RecordExecution(ctx context.Context, exec *Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}

	var result []byte
	if exec.Result != nil {
		var err error
		result, err = json.Marshal(exec.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal execution result: %w", err)
		}
	}

	query := `
		INSERT INTO rule_executions (id, rule_id, event_id, status, result, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		exec.ID, exec.RuleID, exec.EventID, exec.Status, result, nullString(exec.Error), exec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// MarkExecuted bumps the success counters. Last-write-wins across
// concurrent consumers; the increment itself is atomic in SQL.
func (r *PostgresRepository) MarkExecuted(ctx context.Context, ruleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rules SET execution_count = execution_count + 1, last_executed = $2 WHERE id = $1`,
		ruleID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark rule executed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, rule_id, event_id, status, result, error, executed_at
		FROM rule_executions
		WHERE rule_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []Execution
	for rows.Next() {
		var exec Execution
		var result []byte
		var errMsg sql.NullString
		if err := rows.Scan(&exec.ID, &exec.RuleID, &exec.EventID, &exec.Status, &result, &errMsg, &exec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &exec.Result); err != nil {
				return nil, fmt.Errorf("failed to decode execution result: %w", err)
			}
		}
		exec.Error = errMsg.String
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return execs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var conditions, actions []byte
	var lastExecuted sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Name, &rule.TriggerType, &rule.EventPattern,
		&conditions, &actions, &rule.Enabled, &rule.ExecutionCount,
		&lastExecuted, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode rule conditions: %w", err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode rule actions: %w", err)
		}
	}
	if lastExecuted.Valid {
		t := lastExecuted.Time
		rule.LastExecuted = &t
	}

	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func marshalRuleJSON(rule *Rule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal rule conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal rule actions: %w", err)
	}
	return conditions, actions, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
