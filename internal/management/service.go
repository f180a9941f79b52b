package management

import (
	"context"
	"encoding/json"
	"fmt"

	"pulse/internal/actions"
	"pulse/internal/bus"
	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/internal/rules"
	"pulse/pkg/failure"
)

type Service interface {
	ListRules(ctx context.Context, scope string) ([]rules.Rule, error)
	GetRule(ctx context.Context, id string) (*rules.Rule, error)
	CreateRule(ctx context.Context, req CreateRuleRequest, actor, ip string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest, actor, ip string) (*rules.Rule, error)
	DeleteRule(ctx context.Context, id string, actor, ip string) error
	SetRuleEnabled(ctx context.Context, id string, enabled bool, actor, ip string) (*rules.Rule, error)
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]rules.Execution, error)
	ListAuditLogs(ctx context.Context, ruleID string, limit int) ([]AuditLog, error)

	ListDLQ(ctx context.Context, queue string, limit int64) ([]dlq.Item, error)
	ReplayDLQItem(ctx context.Context, queue, id string) (bool, error)
	ReplayDLQ(ctx context.Context, queue string) (int, int, error)
	PurgeDLQ(ctx context.Context, queue string) (int64, error)

	PublishEvent(ctx context.Context, req PublishEventRequest) (string, error)
}

type service struct {
	repo              rules.Repository
	dlqStore          *dlq.Store
	eventBus          bus.Bus
	audit             *AuditLogger
	replayConcurrency int64
	logger            logger.Logger
}

func NewService(repo rules.Repository, dlqStore *dlq.Store, eventBus bus.Bus, audit *AuditLogger, replayConcurrency int64, log logger.Logger) Service {
	return &service{
		repo:              repo,
		dlqStore:          dlqStore,
		eventBus:          eventBus,
		audit:             audit,
		replayConcurrency: replayConcurrency,
		logger:            log,
	}
}

func (s *service) ListRules(ctx context.Context, scope string) ([]rules.Rule, error) {
	return s.repo.List(ctx, scope)
}

func (s *service) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) CreateRule(ctx context.Context, req CreateRuleRequest, actor, ip string) (*rules.Rule, error) {
	if err := validateActions(req.Actions); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &rules.Rule{
		UserID:       req.UserID,
		Name:         req.Name,
		TriggerType:  rules.TriggerType(req.TriggerType),
		EventPattern: req.EventPattern,
		Conditions:   req.Conditions,
		Actions:      req.Actions,
		Enabled:      enabled,
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logAudit(ctx, AuditLogEntry{
		RuleID:    rule.ID,
		Action:    "create",
		NewValue:  rule,
		ChangedBy: actor,
		IPAddress: ip,
	})
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest, actor, ip string) (*rules.Rule, error) {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *rule

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.TriggerType != nil {
		rule.TriggerType = rules.TriggerType(*req.TriggerType)
	}
	if req.EventPattern != nil {
		rule.EventPattern = *req.EventPattern
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.Actions != nil {
		if err := validateActions(*req.Actions); err != nil {
			return nil, err
		}
		rule.Actions = *req.Actions
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.logAudit(ctx, AuditLogEntry{
		RuleID:    rule.ID,
		Action:    "update",
		OldValue:  old,
		NewValue:  rule,
		ChangedBy: actor,
		IPAddress: ip,
	})
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, id string, actor, ip string) error {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, AuditLogEntry{
		RuleID:    id,
		Action:    "delete",
		OldValue:  rule,
		ChangedBy: actor,
		IPAddress: ip,
	})
	return nil
}

func (s *service) SetRuleEnabled(ctx context.Context, id string, enabled bool, actor, ip string) (*rules.Rule, error) {
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}

	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	action := "disable"
	if enabled {
		action = "enable"
	}
	s.logAudit(ctx, AuditLogEntry{
		RuleID:    id,
		Action:    action,
		NewValue:  rule,
		ChangedBy: actor,
		IPAddress: ip,
	})
	return rule, nil
}

func (s *service) ListExecutions(ctx context.Context, ruleID string, limit int) ([]rules.Execution, error) {
	if _, err := s.repo.Get(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.repo.ListExecutions(ctx, ruleID, limit)
}

func (s *service) ListAuditLogs(ctx context.Context, ruleID string, limit int) ([]AuditLog, error) {
	return s.audit.ListRuleChanges(ctx, ruleID, limit)
}

func (s *service) ListDLQ(ctx context.Context, queue string, limit int64) ([]dlq.Item, error) {
	return s.dlqStore.List(ctx, queue, limit)
}

func (s *service) ReplayDLQItem(ctx context.Context, queue, id string) (bool, error) {
	return s.dlqStore.Replay(ctx, queue, id, s.republish)
}

func (s *service) ReplayDLQ(ctx context.Context, queue string) (int, int, error) {
	return s.dlqStore.ReplayAll(ctx, queue, s.replayConcurrency, s.republish)
}

func (s *service) PurgeDLQ(ctx context.Context, queue string) (int64, error) {
	return s.dlqStore.Purge(ctx, queue)
}

func (s *service) PublishEvent(ctx context.Context, req PublishEventRequest) (string, error) {
	source := req.Source
	if source == "" {
		source = "management-api"
	}
	return s.eventBus.Publish(ctx, req.Type, req.Data, source)
}

// republish feeds a parked entry back through the log as a fresh event.
// The original entry was never marked processed, so the consumer group
// picks the new entry up like any other.
func (s *service) republish(ctx context.Context, item dlq.Item) error {
	eventType, _ := item.Payload["type"].(string)
	if eventType == "" {
		return failure.New(failure.Validation, "DLQ item has no event type to replay")
	}

	source, _ := item.Payload["source"].(string)

	var data map[string]interface{}
	switch v := item.Payload["data"].(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &data); err != nil {
			return failure.New(failure.Validation, "DLQ item payload is not decodable")
		}
	case map[string]interface{}:
		data = v
	}

	_, err := s.eventBus.Publish(ctx, eventType, data, source)
	return err
}

func (s *service) logAudit(ctx context.Context, entry AuditLogEntry) {
	if entry.ChangedBy == "" {
		entry.ChangedBy = "api"
	}
	if err := s.audit.LogRuleChange(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write audit log",
			"rule_id", entry.RuleID,
			"action", entry.Action,
			"error", err,
		)
	}
}

func validateActions(list []rules.Action) error {
	if len(list) == 0 {
		return failure.New(failure.Validation, "rule must define at least one action")
	}
	for _, a := range list {
		switch a.Type {
		case actions.ActionCreateTask, actions.ActionSendNotification, actions.ActionAggregateAndNotify:
		default:
			return failure.New(failure.Validation, fmt.Sprintf("unknown action type %q", a.Type))
		}
	}
	return nil
}
