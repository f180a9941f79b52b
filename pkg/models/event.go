package models

import "time"

// Event is the envelope persisted in the durable log. Events are immutable
// once published; consumers decode but never mutate them.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"ts"`
	Payload   map[string]interface{} `json:"data"`
}

// OwnerID returns the user scope the event belongs to, or "system" when the
// payload carries no owner.
func (e Event) OwnerID() string {
	if v, ok := e.Payload["user_id"].(string); ok && v != "" {
		return v
	}
	return SystemScope
}

// SystemScope is the shared owner scope matched by every event.
const SystemScope = "system"
