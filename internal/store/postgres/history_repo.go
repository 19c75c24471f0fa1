package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// HistoryRepo is the relational store.HistorySource.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

var _ store.HistorySource = (*HistoryRepo)(nil)

func (r *HistoryRepo) QueryHistory(ctx context.Context, filter store.HistoryFilter) (rows []store.HistoryRow, err error) {
	ctx, span := tracing.Tracer("store/postgres").Start(ctx, "HistoryRepo.QueryHistory")
	span.SetAttributes(
		attribute.Int("history.addresses", len(filter.Addresses)),
		attribute.Int("history.payment_creds", len(filter.PaymentCreds)),
		attribute.Int64("history.upper", filter.Upper),
		attribute.Int64("history.lower", filter.Lower),
		attribute.Int("history.limit", filter.Limit),
	)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.StoreQueryDuration.WithLabelValues("history", status).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	query, args := BuildHistoryQuery(filter)
	result, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transaction history: %w", err)
	}
	defer result.Close()

	for result.Next() {
		row, err := scanHistoryRow(result)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction history: %w", err)
	}

	metrics.StoreRowsReturned.WithLabelValues("history").Add(float64(len(rows)))
	span.SetAttributes(attribute.Int("history.rows", len(rows)))
	return rows, nil
}

func scanHistoryRow(rows *sql.Rows) (store.HistoryRow, error) {
	var (
		row                             store.HistoryRow
		epochNo, slotNo, slotInEpoch    sql.NullInt64
		inputs, outputs, wds, certsJSON []byte
		includedAt                      time.Time
	)
	if err := rows.Scan(
		&row.Hash,
		&row.Fee,
		&row.TxIndex,
		&row.BlockNumber,
		&row.BlockHash,
		&epochNo,
		&slotNo,
		&slotInEpoch,
		&row.BlockHasVRFKey,
		&includedAt,
		&inputs,
		&outputs,
		&wds,
		&row.Metadata,
		&certsJSON,
	); err != nil {
		return store.HistoryRow{}, fmt.Errorf("scan history row: %w", err)
	}
	row.BlockEpochNo = epochNo.Int64
	row.BlockSlotNo = slotNo.Int64
	row.BlockSlotInEpoch = slotInEpoch.Int64
	row.IncludedAt = includedAt.UTC()

	var err error
	if row.Inputs, err = decodeInputs(inputs); err != nil {
		return store.HistoryRow{}, fmt.Errorf("tx %x: %w", row.Hash, err)
	}
	if row.Outputs, err = decodeOutputs(outputs); err != nil {
		return store.HistoryRow{}, fmt.Errorf("tx %x: %w", row.Hash, err)
	}
	if row.Withdrawals, err = decodeWithdrawals(wds); err != nil {
		return store.HistoryRow{}, fmt.Errorf("tx %x: %w", row.Hash, err)
	}
	if row.Certificates, err = decodeCertificates(certsJSON); err != nil {
		return store.HistoryRow{}, fmt.Errorf("tx %x: %w", row.Hash, err)
	}
	return row, nil
}
