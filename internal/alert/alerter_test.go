package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert() Alert {
	return Alert{
		Type:    AlertTypeUpstreamDown,
		Service: "graphql",
		Title:   "circuit breaker opened",
		Message: "metadata lookups are failing fast",
		Fields: map[string]string{
			"from": "closed",
			"to":   "open",
		},
	}
}

// countingServer answers every request with status and counts them.
func countingServer(t *testing.T, status int, received *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// captureServer records the last request body.
func captureServer(t *testing.T, body *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		*body = b
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMultiAlerter_SendsToAllChannels(t *testing.T) {
	var slackReceived, webhookReceived atomic.Int32
	slack := NewSlackAlerter(countingServer(t, http.StatusOK, &slackReceived).URL)
	webhook := NewWebhookAlerter(countingServer(t, http.StatusOK, &webhookReceived).URL)

	multi := NewMultiAlerter(time.Hour, testLogger(), slack, webhook)

	require.NoError(t, multi.Send(context.Background(), testAlert()))
	assert.Equal(t, int32(1), slackReceived.Load())
	assert.Equal(t, int32(1), webhookReceived.Load())
}

func TestMultiAlerter_CooldownPerTypeAndService(t *testing.T) {
	var received atomic.Int32
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	multi := NewMultiAlerter(time.Minute, testLogger(), NewWebhookAlerter(countingServer(t, http.StatusOK, &received).URL))
	multi.nowFunc = func() time.Time { return now }

	require.NoError(t, multi.Send(context.Background(), testAlert()))
	require.NoError(t, multi.Send(context.Background(), testAlert()))
	assert.Equal(t, int32(1), received.Load(), "duplicate within cooldown is suppressed")

	recovered := testAlert()
	recovered.Type = AlertTypeUpstreamRecovered
	require.NoError(t, multi.Send(context.Background(), recovered))
	assert.Equal(t, int32(2), received.Load(), "a different type is not suppressed")

	now = now.Add(time.Minute + time.Second)
	require.NoError(t, multi.Send(context.Background(), testAlert()))
	assert.Equal(t, int32(3), received.Load(), "cooldown expired")
}

func TestMultiAlerter_PartialFailure(t *testing.T) {
	var failReceived, goodReceived atomic.Int32
	failing := NewWebhookAlerter(countingServer(t, http.StatusInternalServerError, &failReceived).URL)
	good := NewWebhookAlerter(countingServer(t, http.StatusOK, &goodReceived).URL)

	multi := NewMultiAlerter(time.Hour, testLogger(), failing, good)

	err := multi.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned status 500")
	assert.Equal(t, int32(1), goodReceived.Load())
}

func TestSlackAlerter_PayloadFormat(t *testing.T) {
	var body []byte
	slack := NewSlackAlerter(captureServer(t, &body).URL)

	require.NoError(t, slack.Send(context.Background(), testAlert()))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	text := payload["text"]

	assert.True(t, strings.HasPrefix(text, ":rotating_light: *[UPSTREAM_DOWN]* graphql: circuit breaker opened"))
	assert.Contains(t, text, "metadata lookups are failing fast")
	assert.Less(t, strings.Index(text, "*from*"), strings.Index(text, "*to*"), "fields are sorted by key")
}

func TestSlackAlerter_RecoveredEmoji(t *testing.T) {
	var body []byte
	slack := NewSlackAlerter(captureServer(t, &body).URL)

	a := testAlert()
	a.Type = AlertTypeUpstreamRecovered
	a.Fields = nil
	require.NoError(t, slack.Send(context.Background(), a))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.True(t, strings.HasPrefix(payload["text"], ":white_check_mark:"))
}

func TestWebhookAlerter_PayloadFormat(t *testing.T) {
	var body []byte
	webhook := NewWebhookAlerter(captureServer(t, &body).URL)
	webhook.nowFunc = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, webhook.Send(context.Background(), testAlert()))

	assert.JSONEq(t, `{
		"type": "UPSTREAM_DOWN",
		"service": "graphql",
		"title": "circuit breaker opened",
		"message": "metadata lookups are failing fast",
		"fields": {"from": "closed", "to": "open"},
		"time": "2024-03-01T12:00:00Z"
	}`, string(body))
}

func TestWebhookAlerter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewWebhookAlerter(url).Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send webhook alert")
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, &NoopAlerter{}, FromConfig("", "", time.Minute, testLogger()))

	multi, ok := FromConfig("http://slack.invalid", "http://hook.invalid", time.Minute, testLogger()).(*MultiAlerter)
	require.True(t, ok)
	require.Len(t, multi.alerters, 2)
	assert.Equal(t, "slack", alerterName(multi.alerters[0]))
	assert.Equal(t, "webhook", alerterName(multi.alerters[1]))
}
