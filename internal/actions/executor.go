// Package actions implements the side effects a matched rule can trigger.
// The action type set is closed: adding one means adding a constant, a case
// in Execute and the collaborator that carries it out.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pulse/internal/logger"
	"pulse/internal/provider"
	"pulse/internal/rules"
	"pulse/pkg/failure"
	"pulse/pkg/models"
)

const (
	ActionCreateTask         = "create_task"
	ActionSendNotification   = "send_notification"
	ActionAggregateAndNotify = "aggregate_and_notify"
)

// Completer produces a text summary from a prompt. Satisfied by
// provider.Router.
type Completer interface {
	Execute(ctx context.Context, req provider.Request) (provider.Response, error)
}

// Executor implements rules.ActionRunner.
type Executor struct {
	tasks     TaskCreator
	notifier  *Notifier
	completer Completer
	logger    logger.Logger
}

// NewExecutor builds the action runner. completer may be nil, in which
// case aggregate_and_notify falls back to a local payload summary.
func NewExecutor(tasks TaskCreator, notifier *Notifier, completer Completer, log logger.Logger) *Executor {
	return &Executor{
		tasks:     tasks,
		notifier:  notifier,
		completer: completer,
		logger:    log,
	}
}

func (e *Executor) Execute(ctx context.Context, action rules.Action, event models.Event) (map[string]interface{}, error) {
	switch action.Type {
	case ActionCreateTask:
		return e.createTask(ctx, action, event)
	case ActionSendNotification:
		return e.sendNotification(ctx, action, event)
	case ActionAggregateAndNotify:
		return e.aggregateAndNotify(ctx, action, event)
	default:
		return nil, failure.New(failure.Validation,
			fmt.Sprintf("unknown action type %q", action.Type))
	}
}

func (e *Executor) createTask(ctx context.Context, action rules.Action, event models.Event) (map[string]interface{}, error) {
	title := stringParam(action.Params, "title")
	if title == "" {
		if v, ok := event.Payload["title"].(string); ok {
			title = v
		}
	}
	if title == "" {
		title = "Task from " + event.Type
	}

	taskID, err := e.tasks.CreateTask(ctx, event.OwnerID(), title, event.ID)
	if err != nil {
		return nil, err
	}

	e.logger.InfowCtx(ctx, "Task created",
		"task_id", taskID,
		"owner", event.OwnerID(),
	)
	return map[string]interface{}{"task_id": taskID}, nil
}

func (e *Executor) sendNotification(ctx context.Context, action rules.Action, event models.Event) (map[string]interface{}, error) {
	channel := stringParam(action.Params, "channel")
	if channel == "" {
		channel = ChannelEmail
	}

	message := stringParam(action.Params, "message")
	if message == "" {
		message = fmt.Sprintf("Event %s from %s", event.Type, event.Source)
	}

	return e.notifier.Send(ctx, channel, message, map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
}

// aggregateAndNotify folds the event payload into a one-line summary and
// hands it to the notifier. The summary lists payload keys params name in
// "fields", or every scalar payload value when unset. When a completer is
// configured it rewrites the summary; a completer failure falls back to
// the local one rather than failing the action.
func (e *Executor) aggregateAndNotify(ctx context.Context, action rules.Action, event models.Event) (map[string]interface{}, error) {
	summary := summarize(action.Params, event)

	if e.completer != nil {
		resp, err := e.completer.Execute(ctx, provider.Request{
			Prompt: "Summarize for a notification: " + summary,
		})
		if err != nil {
			e.logger.WarnwCtx(ctx, "Summary provider unavailable, using local summary", "error", err)
		} else if resp.Content != "" {
			summary = resp.Content
		}
	}

	channel := stringParam(action.Params, "channel")
	if channel == "" {
		channel = ChannelEmail
	}

	return e.notifier.Send(ctx, channel, summary, map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"aggregated": true,
	})
}

func summarize(params map[string]interface{}, event models.Event) string {
	prefix := stringParam(params, "summary_prefix")
	if prefix == "" {
		prefix = "Summary for " + event.Type
	}

	var parts []string
	if fields, ok := params["fields"].([]interface{}); ok {
		for _, f := range fields {
			key, ok := f.(string)
			if !ok {
				continue
			}
			if v, present := event.Payload[key]; present {
				parts = append(parts, fmt.Sprintf("%s=%v", key, v))
			}
		}
	} else {
		for key, v := range event.Payload {
			switch v.(type) {
			case string, bool, float64, int:
				parts = append(parts, fmt.Sprintf("%s=%v", key, v))
			}
		}
		sort.Strings(parts)
	}

	if len(parts) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(parts, ", ")
}

func stringParam(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	v, _ := params[key].(string)
	return v
}
