package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditLogger records every rule mutation made through the API. Audit
// failures are logged by callers but never block the mutation itself.
type AuditLogger struct {
	db *sql.DB
}

func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

type AuditLogEntry struct {
	ID        string
	RuleID    string
	Action    string
	OldValue  interface{}
	NewValue  interface{}
	ChangedBy string
	IPAddress string
	Timestamp time.Time
}

func (a *AuditLogger) LogRuleChange(ctx context.Context, entry AuditLogEntry) error {
	query := `
		INSERT INTO rule_audit_logs (id, rule_id, action, old_value, new_value, changed_by, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	oldValueJSON, _ := json.Marshal(entry.OldValue)
	newValueJSON, _ := json.Marshal(entry.NewValue)

	var ipAddress *string
	if entry.IPAddress != "" {
		ipAddress = &entry.IPAddress
	}

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx, query,
		id, entry.RuleID, entry.Action,
		oldValueJSON, newValueJSON,
		entry.ChangedBy, ipAddress, timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}
	return nil
}

type AuditLog struct {
	ID        string          `json:"id"`
	RuleID    string          `json:"rule_id"`
	Action    string          `json:"action"`
	OldValue  json.RawMessage `json:"old_value,omitempty"`
	NewValue  json.RawMessage `json:"new_value,omitempty"`
	ChangedBy string          `json:"changed_by"`
	IPAddress string          `json:"ip_address,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (a *AuditLogger) ListRuleChanges(ctx context.Context, ruleID string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, rule_id, action, old_value, new_value, changed_by, ip_address, timestamp
		FROM rule_audit_logs
		WHERE rule_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := a.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var ipAddress sql.NullString
		if err := rows.Scan(&log.ID, &log.RuleID, &log.Action, &log.OldValue, &log.NewValue, &log.ChangedBy, &ipAddress, &log.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.IPAddress = ipAddress.String
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
