package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/pkg/failure"
)

func TestWebhookTransportRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newWebhookTransport("email", server.URL)

	err := transport.Deliver(context.Background(), map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "a 500 is retried until the webhook recovers")
}

func TestWebhookTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	transport := newWebhookTransport("slack", server.URL)

	err := transport.Deliver(context.Background(), map[string]interface{}{"message": "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a 4xx never retries")
	assert.Equal(t, failure.Validation, failure.ReasonOf(err))
}

func TestWebhookTransportExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := newWebhookTransport("sms", server.URL)

	err := transport.Deliver(context.Background(), map[string]interface{}{"message": "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "the quick profile allows three attempts")
	assert.Equal(t, failure.Dependency, failure.ReasonOf(err))
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code int
		want failure.Reason
	}{
		{http.StatusOK, ""},
		{http.StatusNoContent, ""},
		{http.StatusBadRequest, failure.Validation},
		{http.StatusNotFound, failure.Validation},
		{http.StatusTooManyRequests, failure.RateLimit},
		{http.StatusInternalServerError, failure.Dependency},
		{http.StatusBadGateway, failure.Dependency},
	}

	for _, tt := range tests {
		err := statusError(tt.code)
		if tt.want == "" {
			assert.NoError(t, err, "status %d", tt.code)
			continue
		}
		require.Error(t, err, "status %d", tt.code)
		assert.Equal(t, tt.want, failure.ReasonOf(err), "status %d", tt.code)
	}
}

func TestNotifierRegistersConfiguredChannels(t *testing.T) {
	n := NewNotifier(config.NotificationsConfig{
		EmailWebhookURL: "http://email.example/hook",
		SMSWebhookURL:   "http://sms.example/hook",
	}, logger.NopLogger())

	assert.Contains(t, n.transports, ChannelEmail)
	assert.Contains(t, n.transports, ChannelSMS)
	assert.NotContains(t, n.transports, ChannelSlack)
}
