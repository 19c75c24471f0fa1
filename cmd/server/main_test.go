package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/alert"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/circuitbreaker"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/config"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/history"
	metadatamocks "github.com/waterelder/yoroi-graphql-migration-backend/internal/metadata/mocks"
	storemocks "github.com/waterelder/yoroi-graphql-migration-backend/internal/store/mocks"
	"go.uber.org/mock/gomock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestHealthHandler(t *testing.T) {
	h := healthHandler(discardLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "txhistory_")
}

func newHandlerUnderTest(t *testing.T, cfg *config.Config) (http.Handler, func()) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := history.NewService(storemocks.NewMockHistorySource(ctrl), discardLogger())
	return newAPIHandler(cfg, svc, metadatamocks.NewMockLookups(ctrl), discardLogger())
}

func TestNewAPIHandler_AppliesHistoryLimits(t *testing.T) {
	cfg := &config.Config{}
	cfg.History.AddressRequestLimit = 1
	cfg.History.ResponseLimit = 10

	h, stop := newHandlerUnderTest(t, cfg)
	defer stop()

	body := []byte(`{"addresses":["a","b"],"untilBlock":"bb"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/txs/history", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "(0, 1]")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestNewAPIHandler_RateLimitEnabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.RateLimitRPS = 0.001
	cfg.Server.RateLimitBurst = 1

	h, stop := newHandlerUnderTest(t, cfg)
	defer stop()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v2/txs/history", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v2/txs/history", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestNewAPIHandler_RateLimitDisabled(t *testing.T) {
	cfg := &config.Config{}

	h, stop := newHandlerUnderTest(t, cfg)
	defer stop()

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/txs/history", bytes.NewReader([]byte(`{}`))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestNewMetadataClient(t *testing.T) {
	client := newMetadataClient(config.GraphQLConfig{
		URL:                "http://localhost:3100/graphql",
		Timeout:            time.Second,
		RPS:                10,
		Burst:              1,
		BreakerFailures:    3,
		BreakerOpenTimeout: time.Second,
	}, &alert.NoopAlerter{}, discardLogger())
	require.NotNil(t, client)

	out := client.AskBlockNumByHash(context.Background(), "")
	assert.False(t, out.IsOK())
	assert.Equal(t, "no value", out.ErrMsg)
}

func TestRunHTTPServer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runHTTPServer(ctx, "test", 0, http.NotFoundHandler(), discardLogger())
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

type recordingAlerter struct {
	ch chan alert.Alert
}

func (r *recordingAlerter) Send(_ context.Context, a alert.Alert) error {
	r.ch <- a
	return nil
}

func TestBreakerAlertHook(t *testing.T) {
	rec := &recordingAlerter{ch: make(chan alert.Alert, 2)}
	hook := breakerAlertHook("graphql", rec, discardLogger())

	hook(circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	select {
	case a := <-rec.ch:
		assert.Equal(t, alert.AlertTypeUpstreamDown, a.Type)
		assert.Equal(t, "graphql", a.Service)
		assert.Equal(t, "open", a.Fields["to"])
	case <-time.After(time.Second):
		t.Fatal("expected an upstream down alert")
	}

	hook(circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	hook(circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed)
	select {
	case a := <-rec.ch:
		assert.Equal(t, alert.AlertTypeUpstreamRecovered, a.Type, "half-open does not alert")
	case <-time.After(time.Second):
		t.Fatal("expected an upstream recovered alert")
	}
}
