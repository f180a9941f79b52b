package integration

import (
	"sync"
	"time"

	"pulse/internal/bus"
	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/internal/rules"
)

const (
	consumeTimeout = 15 * time.Second
	pollInterval   = 50 * time.Millisecond
	timestampDelay = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestDLQStore(infra *TestInfra, maxLength int64) *dlq.Store {
	return dlq.NewStore(infra.RedisClient, maxLength, createTestLogger())
}

func createTestStreamBus(infra *TestInfra, stream string) *bus.StreamBus {
	seen := bus.NewSeenStore(infra.RedisClient, 100)
	store := createTestDLQStore(infra, 100)
	return bus.NewStreamBus(infra.RedisClient, stream, seen, store, createTestLogger())
}

func createTestRule(userID, name, pattern string) *rules.Rule {
	return &rules.Rule{
		UserID:       userID,
		Name:         name,
		TriggerType:  rules.TriggerEvent,
		EventPattern: pattern,
		Conditions:   map[string]interface{}{},
		Actions: []rules.Action{
			{Type: "send_notification", Params: map[string]interface{}{"channel": "email"}},
		},
		Enabled: true,
	}
}

// eventCollector is a bus.Handler that records everything it receives.
type eventCollector struct {
	mu     sync.Mutex
	events []string
}

func (c *eventCollector) handle(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, id)
}

func (c *eventCollector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

// waitFor polls cond until it returns true or the timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}
