// Package alert notifies operators when an upstream dependency changes health.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
)

type AlertType string

const (
	AlertTypeUpstreamDown      AlertType = "UPSTREAM_DOWN"
	AlertTypeUpstreamRecovered AlertType = "UPSTREAM_RECOVERED"
)

type Alert struct {
	Type    AlertType
	Service string // upstream name, e.g. "graphql"
	Title   string
	Message string
	Fields  map[string]string
}

type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// MultiAlerter fans an alert out to every channel, at most once per
// (type, service) within the cooldown.
type MultiAlerter struct {
	alerters []Alerter
	cooldown time.Duration
	logger   *slog.Logger
	nowFunc  func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{
		alerters: alerters,
		cooldown: cooldown,
		logger:   logger.With("component", "alerter"),
		nowFunc:  time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func cooldownKey(a Alert) string {
	return string(a.Type) + ":" + a.Service
}

// Send returns the first channel error; the remaining channels are still tried.
func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	key := cooldownKey(alert)
	now := m.nowFunc()

	m.mu.Lock()
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug("alert suppressed by cooldown", "key", key)
		for _, a := range m.alerters {
			metrics.AlertsCooldownSkipped.WithLabelValues(alerterName(a), string(alert.Type)).Inc()
		}
		return nil
	}
	m.lastSent[key] = now
	m.mu.Unlock()

	var firstErr error
	for _, a := range m.alerters {
		if err := a.Send(ctx, alert); err != nil {
			m.logger.Warn("alert send failed",
				"channel", alerterName(a),
				"type", alert.Type,
				"service", alert.Service,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(alerterName(a), string(alert.Type)).Inc()
	}
	return firstErr
}

func alerterName(a Alerter) string {
	switch a.(type) {
	case *SlackAlerter:
		return "slack"
	case *WebhookAlerter:
		return "webhook"
	default:
		return "unknown"
	}
}

// postJSON posts v and treats any non-2xx status as failure.
func postJSON(ctx context.Context, client *http.Client, url, channel string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

// SlackAlerter posts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	emoji := ":rotating_light:"
	if alert.Type == AlertTypeUpstreamRecovered {
		emoji = ":white_check_mark:"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *[%s]* %s: %s\n%s", emoji, alert.Type, alert.Service, alert.Title, alert.Message)

	if len(alert.Fields) > 0 {
		keys := make([]string, 0, len(alert.Fields))
		for k := range alert.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- *%s*: %s\n", k, alert.Fields[k])
		}
	}

	return postJSON(ctx, s.client, s.webhookURL, "slack", map[string]string{"text": b.String()})
}

// WebhookAlerter posts a flat JSON document to any HTTP endpoint.
type WebhookAlerter struct {
	url     string
	client  *http.Client
	nowFunc func() time.Time
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		nowFunc: time.Now,
	}
}

func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	return postJSON(ctx, w.client, w.url, "webhook", map[string]any{
		"type":    string(alert.Type),
		"service": alert.Service,
		"title":   alert.Title,
		"message": alert.Message,
		"fields":  alert.Fields,
		"time":    w.nowFunc().UTC().Format(time.RFC3339),
	})
}

// NoopAlerter is used when no channel is configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }

// FromConfig builds a MultiAlerter over the configured channels, or a
// NoopAlerter when none is set.
func FromConfig(slackWebhookURL, webhookURL string, cooldown time.Duration, logger *slog.Logger) Alerter {
	var alerters []Alerter
	if slackWebhookURL != "" {
		alerters = append(alerters, NewSlackAlerter(slackWebhookURL))
	}
	if webhookURL != "" {
		alerters = append(alerters, NewWebhookAlerter(webhookURL))
	}
	if len(alerters) == 0 {
		return &NoopAlerter{}
	}
	return NewMultiAlerter(cooldown, logger, alerters...)
}
