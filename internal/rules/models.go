package rules

import "time"

type TriggerType string

const (
	TriggerEvent    TriggerType = "event"
	TriggerSchedule TriggerType = "schedule"
)

// Rule is a stored trigger/condition/action tuple. Only its counters mutate
// after creation, and only on a successful execution.
type Rule struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Name           string                 `json:"name"`
	TriggerType    TriggerType            `json:"trigger_type"`
	EventPattern   string                 `json:"event_pattern"`
	Conditions     map[string]interface{} `json:"conditions"`
	Actions        []Action               `json:"actions"`
	Enabled        bool                   `json:"enabled"`
	ExecutionCount int                    `json:"execution_count"`
	LastExecuted   *time.Time             `json:"last_executed"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

type Action struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusSkipped ExecutionStatus = "skipped"
	StatusFailed  ExecutionStatus = "failed"
)

// Execution is the append-only audit record of one rule invocation against
// one matched event.
type Execution struct {
	ID         string                 `json:"id"`
	RuleID     string                 `json:"rule_id"`
	EventID    string                 `json:"event_id"`
	Status     ExecutionStatus        `json:"status"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ExecutedAt time.Time              `json:"executed_at"`
}
