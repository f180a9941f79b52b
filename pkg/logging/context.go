package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	EventIDKey     = "event_id"
	ConsumerKey    = "consumer"
	ServiceNameKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithConsumer(ctx context.Context, consumer string) context.Context {
	return context.WithValue(ctx, ConsumerKey, consumer)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}

func GetConsumer(ctx context.Context) string {
	if consumer, ok := ctx.Value(ConsumerKey).(string); ok {
		return consumer
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, "event_id", eventID)
	}

	if consumer := GetConsumer(ctx); consumer != "" {
		fields = append(fields, "consumer", consumer)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
