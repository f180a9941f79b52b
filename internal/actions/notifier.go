package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/pkg/circuitbreaker"
	"pulse/pkg/failure"
	"pulse/pkg/metrics"
	"pulse/pkg/retry"
)

const (
	ChannelEmail = "email"
	ChannelSlack = "slack"
	ChannelSMS   = "sms"
)

// transport delivers one notification payload to a channel backend.
type transport interface {
	Deliver(ctx context.Context, payload map[string]interface{}) error
}

// webhookTransport posts JSON to a configured webhook URL behind a
// circuit breaker, retrying transient failures under the quick profile.
// Slack, email and SMS all use the same shape; only the endpoint differs.
type webhookTransport struct {
	channel string
	url     string
	client  *http.Client
	breaker *circuitbreaker.Wrapper
}

func newWebhookTransport(channel, url string) *webhookTransport {
	return &webhookTransport{
		channel: channel,
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("notify-" + channel)),
	}
}

func (t *webhookTransport) Deliver(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	// The breaker sees one outcome per delivery, after the retry
	// schedule is exhausted.
	_, err = t.breaker.Execute(func() (interface{}, error) {
		err := retry.DoWithPolicy(ctx, retry.Quick, func() error {
			return t.post(ctx, body)
		}, func(attempt int, err error, next time.Duration) {
			metrics.RetryAttemptsTotal.WithLabelValues("notification", t.channel).Inc()
		})
		return nil, err
	})
	return err
}

func (t *webhookTransport) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return statusError(resp.StatusCode)
}

// statusError maps a webhook response code onto the failure taxonomy so
// the retry profile stops on client errors and keeps trying server ones.
func statusError(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests:
		return failure.New(failure.RateLimit, fmt.Sprintf("webhook returned status %d", code))
	case code >= 500:
		return failure.New(failure.Dependency, fmt.Sprintf("webhook returned status %d", code))
	default:
		return failure.New(failure.Validation, fmt.Sprintf("webhook returned status %d", code))
	}
}

// Notifier dispatches notifications by channel name. Channels without a
// configured endpoint are reported as skipped rather than failed, so a
// partially configured deployment does not poison rule executions.
type Notifier struct {
	transports map[string]transport
	logger     logger.Logger
}

func NewNotifier(cfg config.NotificationsConfig, log logger.Logger) *Notifier {
	transports := make(map[string]transport, 3)
	if cfg.EmailWebhookURL != "" {
		transports[ChannelEmail] = newWebhookTransport(ChannelEmail, cfg.EmailWebhookURL)
	}
	if cfg.SlackWebhookURL != "" {
		transports[ChannelSlack] = newWebhookTransport(ChannelSlack, cfg.SlackWebhookURL)
	}
	if cfg.SMSWebhookURL != "" {
		transports[ChannelSMS] = newWebhookTransport(ChannelSMS, cfg.SMSWebhookURL)
	}

	return &Notifier{
		transports: transports,
		logger:     log,
	}
}

// Send delivers message to channel. A missing transport yields a
// structured skip result, not an error.
func (n *Notifier) Send(ctx context.Context, channel, message string, meta map[string]interface{}) (map[string]interface{}, error) {
	t, ok := n.transports[channel]
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(channel, "skipped").Inc()
		n.logger.WarnwCtx(ctx, "Notification channel not configured",
			"channel", channel,
		)
		return map[string]interface{}{
			"sent":    false,
			"channel": channel,
			"reason":  "channel not configured",
		}, nil
	}

	payload := map[string]interface{}{
		"channel": channel,
		"message": message,
	}
	for k, v := range meta {
		payload[k] = v
	}

	if err := t.Deliver(ctx, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues(channel, "failed").Inc()
		return nil, fmt.Errorf("failed to deliver %s notification: %w", channel, err)
	}

	metrics.NotificationsTotal.WithLabelValues(channel, "sent").Inc()
	return map[string]interface{}{
		"sent":            true,
		"channel":         channel,
		"notification_id": uuid.New().String(),
	}, nil
}
