package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Total number of events appended to the durable log (count)",
		},
		[]string{"type", "source"},
	)

	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_consumed_total",
			Help: "Total number of entries delivered to a consumer group (count)",
		},
		[]string{"group", "status"},
	)

	IdempotentSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_idempotent_skips_total",
			Help: "Redeliveries acknowledged without handler invocation (count)",
		},
		[]string{"group"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bus_handler_duration_ms",
			Help:    "Handler execution duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"event_type", "status"},
	)

	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Total number of rule evaluations (count)",
		},
		[]string{"rule_id", "status"},
	)

	RuleActiveCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rule_active_count",
			Help: "Number of enabled rules in the engine cache (count)",
		},
	)

	ActionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_executions_total",
			Help: "Total number of action executions (count)",
		},
		[]string{"action", "status"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "action_duration_ms",
			Help:    "Action execution duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"action"},
	)

	DLQItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_items_total",
			Help: "Total number of items pushed to a dead-letter queue (count)",
		},
		[]string{"queue", "reason"},
	)

	DLQReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_replays_total",
			Help: "Total number of DLQ replay attempts (count)",
		},
		[]string{"queue", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures recorded against a circuit breaker (count)",
		},
		[]string{"name"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of provider calls (count)",
		},
		[]string{"provider", "outcome"},
	)

	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_duration_ms",
			Help:    "Provider call duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider", "outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification dispatches (count)",
		},
		[]string{"channel", "status"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against a rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterBusMetrics() {
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsConsumedTotal)
	prometheus.MustRegister(IdempotentSkipsTotal)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(DLQItemsTotal)
	prometheus.MustRegister(DLQReplaysTotal)
}

func RegisterEngineMetrics() {
	prometheus.MustRegister(RuleEvaluationsTotal)
	prometheus.MustRegister(RuleActiveCount)
	prometheus.MustRegister(ActionExecutionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(NotificationsTotal)
}

func RegisterResilienceMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerFailures)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderDuration)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveHandlerDuration(eventType, status string, duration time.Duration) {
	HandlerDuration.WithLabelValues(eventType, status).Observe(float64(duration.Milliseconds()))
}

func ObserveActionDuration(action string, duration time.Duration) {
	ActionDuration.WithLabelValues(action).Observe(float64(duration.Milliseconds()))
}

func ObserveProviderDuration(provider, outcome string, duration time.Duration) {
	ProviderDuration.WithLabelValues(provider, outcome).Observe(float64(duration.Milliseconds()))
}

func SetActiveRules(count int) {
	RuleActiveCount.Set(float64(count))
}
