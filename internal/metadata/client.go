// Package metadata resolves block numbers from the GraphQL metadata service.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/chain/ratelimit"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/circuitbreaker"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
)

const serviceName = "graphql"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

//go:generate mockgen -destination=mocks/mock_lookups.go -package=mocks . Lookups

// Lookups is the pair of block-number lookups callers use to resolve
// history bounds.
type Lookups interface {
	AskBlockNumByTxHash(ctx context.Context, hash string) model.Outcome[model.BlockNumByTxHash]
	AskBlockNumByHash(ctx context.Context, hash string) model.Outcome[int64]
}

var _ Lookups = (*Client)(nil)

type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
}

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
		logger:   logger.With("component", "metadata"),
	}
}

// SetRateLimiter sets the outbound rate limiter. Nil disables limiting.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetCircuitBreaker sets the breaker guarding the endpoint. Nil disables it.
func (c *Client) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

// post sends one GraphQL request and returns the raw response body. Any
// failure to obtain a 200 response body is a transport error.
func (c *Client) post(ctx context.Context, operation string, req Request) (body []byte, err error) {
	defer func() { ratelimit.RecordRPCCall(serviceName, operation, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	send := func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
		}
		body = respBody
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Do(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}
