package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5, "graphql")

	require.NotNil(t, l)
	require.NotNil(t, l.limiter)
	assert.Equal(t, "graphql", l.service)

	assert.InDelta(t, 10.0, float64(l.limiter.Limit()), 0.001)
	assert.Equal(t, 5, l.limiter.Burst())
}

func TestNewLimiter_DisabledWhenRPSNotPositive(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5, "graphql"))
	assert.Nil(t, NewLimiter(-1, 5, "graphql"))
}

func TestNewLimiter_BurstFloor(t *testing.T) {
	l := NewLimiter(10, 0, "graphql")
	require.NotNil(t, l)
	assert.Equal(t, 1, l.limiter.Burst())
}

func TestLimiter_AllowWithinBurst(t *testing.T) {
	const burst = 5
	l := NewLimiter(100, burst, "graphql")

	ctx := context.Background()

	for i := 0; i < burst; i++ {
		start := time.Now()
		err := l.Wait(ctx)
		elapsed := time.Since(start)

		require.NoError(t, err, "request %d should not error", i)
		assert.Less(t, elapsed, 50*time.Millisecond,
			"request %d should complete immediately, took %v", i, elapsed)
	}
}

func TestLimiter_WaitWhenExhausted(t *testing.T) {
	const (
		rps   = 10.0 // 1 token every 100ms
		burst = 1
	)
	l := NewLimiter(rps, burst, "graphql")

	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	err := l.Wait(ctx)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"should have waited for a token, but only took %v", elapsed)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := NewLimiter(1.0, 1, "graphql")

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"canceled", fmt.Errorf("http request: %w", context.Canceled), "canceled"},
		{"deadline", fmt.Errorf("http request: %w", context.DeadlineExceeded), "timeout"},
		{"circuit open", errors.New("circuit breaker is open"), "circuit_open"},
		{"timeout text", errors.New("i/o timeout"), "timeout"},
		{"rate limited", errors.New("http status 429: slow down"), "rate_limited"},
		{"server error", errors.New("http status 502: bad gateway"), "server_error"},
		{"network", errors.New("dial tcp: connection refused"), "network_error"},
		{"other", errors.New("http status 400: bad query"), "client_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRPCError(tt.err))
		})
	}
}

func TestRecordRPCCall_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() { RecordRPCCall("graphql", "BlockNumByHash", nil) })
	assert.NotPanics(t, func() { RecordRPCCall("graphql", "BlockNumByHash", errors.New("eof")) })
}
