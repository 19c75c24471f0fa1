// Package history answers "which transactions touched these addresses or
// stake credentials within a block range" and normalizes the result.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Service is stateless apart from its collaborators and safe for concurrent use.
type Service struct {
	source store.HistorySource
	logger *slog.Logger
}

func NewService(source store.HistorySource, logger *slog.Logger) *Service {
	return &Service{
		source: source,
		logger: logger.With("component", "history"),
	}
}

// AskTransactionHistory returns up to limit transactions touching addresses in
// blocks (after, until], oldest first.
//
// A failed bound is replaced by 0 rather than reported: a failed after widens
// the window to genesis, a failed until empties it.
//
// Store failures are returned as error, not as a failed Outcome. Callers
// must handle both.
func (s *Service) AskTransactionHistory(
	ctx context.Context,
	limit int,
	addresses []string,
	after model.Outcome[model.BlockNumByTxHash],
	until model.Outcome[int64],
) (result model.Outcome[[]model.Transaction], err error) {
	ctx, span := tracing.Tracer("history").Start(ctx, "Service.AskTransactionHistory")
	defer func() {
		status := "ok"
		if err != nil {
			status = "store_error"
		}
		metrics.HistoryRequestsTotal.WithLabelValues(status).Inc()
		tracing.EndSpan(span, err)
	}()

	var lower int64
	if v, ok := after.Get(); ok {
		lower = v.Block.Number
	} else {
		metrics.HistoryBoundFallbacks.WithLabelValues("after").Inc()
	}
	upper, ok := until.Get()
	if !ok {
		metrics.HistoryBoundFallbacks.WithLabelValues("until").Inc()
	}

	filter := store.HistoryFilter{
		Addresses:    addresses,
		PaymentCreds: DerivePaymentCreds(addresses),
		Upper:        upper,
		Lower:        lower,
		Limit:        limit,
	}
	span.SetAttributes(
		attribute.Int64("history.lower", lower),
		attribute.Int64("history.upper", upper),
		attribute.Int("history.limit", limit),
	)
	s.logger.DebugContext(ctx, "querying transaction history",
		"addresses", len(addresses),
		"payment_creds", len(filter.PaymentCreds),
		"lower", lower,
		"upper", upper,
		"limit", limit,
	)

	rows, err := s.source.QueryHistory(ctx, filter)
	if err != nil {
		return model.Outcome[[]model.Transaction]{}, fmt.Errorf("ask transaction history: %w", err)
	}

	txs := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, NormalizeRow(row))
	}
	metrics.HistoryTransactionsReturned.Observe(float64(len(txs)))
	s.logger.DebugContext(ctx, "transaction history resolved", "transactions", len(txs))

	return model.Ok(txs), nil
}
