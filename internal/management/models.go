package management

import "pulse/internal/rules"

type CreateRuleRequest struct {
	UserID       string                 `json:"user_id"`
	Name         string                 `json:"name" binding:"required"`
	TriggerType  string                 `json:"trigger_type"`
	EventPattern string                 `json:"event_pattern" binding:"required"`
	Conditions   map[string]interface{} `json:"conditions"`
	Actions      []rules.Action         `json:"actions" binding:"required"`
	Enabled      *bool                  `json:"enabled"`
}

type UpdateRuleRequest struct {
	Name         *string                 `json:"name"`
	TriggerType  *string                 `json:"trigger_type"`
	EventPattern *string                 `json:"event_pattern"`
	Conditions   *map[string]interface{} `json:"conditions"`
	Actions      *[]rules.Action         `json:"actions"`
	Enabled      *bool                   `json:"enabled"`
}

type PublishEventRequest struct {
	Type   string                 `json:"type" binding:"required"`
	Source string                 `json:"source"`
	Data   map[string]interface{} `json:"data"`
}

type PublishEventResponse struct {
	EntryID string `json:"entry_id"`
}

type ReplayResponse struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

type PurgeResponse struct {
	Removed int64 `json:"removed"`
}
