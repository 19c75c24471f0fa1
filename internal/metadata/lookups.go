package metadata

import (
	"context"
	"encoding/json"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// AskBlockNumByTxHash returns the transaction hash and its containing block.
// An empty hash fails without contacting the service.
func (c *Client) AskBlockNumByTxHash(ctx context.Context, hash string) model.Outcome[model.BlockNumByTxHash] {
	ctx, span := tracing.Tracer("metadata").Start(ctx, "Client.AskBlockNumByTxHash")
	defer span.End()
	span.SetAttributes(attribute.String("tx.hash", hash))

	if hash == "" {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "invalid_input", ErrMsgNoValue)
	}

	body, err := c.post(ctx, "BlockNumByTxHash", Request{
		Query:     blockNumByTxHashQuery,
		Variables: map[string]any{"hashId": hash},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "graphql request failed", "lookup", txHashLookup, "error", err)
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "transport_error",
			txHashLookup+", unable to query graphql service: "+err.Error())
	}

	first, found, ok := firstElement(body, "transactions")
	if !ok {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "not_understood", errMsgTxHashNotUnderstood)
	}
	if !found {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "no_value", ErrMsgNoValue)
	}
	rawBlock, has := first["block"]
	if !has {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "no_value", ErrMsgNoValue)
	}
	var block object
	if err := json.Unmarshal(rawBlock, &block); err != nil || block == nil {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "not_understood", errMsgTxHashNotUnderstood)
	}
	if !block.has("hash", "number") {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "no_value", ErrMsgNoValue)
	}

	var rec txRecord
	if err := first.decode(&rec); err != nil {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "not_understood", errMsgTxHashNotUnderstood)
	}
	if rec.Block.Number == nil {
		return lookupFailed[model.BlockNumByTxHash](txHashLookup, "no_value", ErrMsgNoValue)
	}
	metrics.LookupsTotal.WithLabelValues(txHashLookup, "ok").Inc()
	return model.Ok(model.BlockNumByTxHash{
		Hash: rec.Hash,
		Block: model.BlockRef{
			Hash:   rec.Block.Hash,
			Number: *rec.Block.Number,
		},
	})
}

// AskBlockNumByHash returns the number of the block with the given hash.
// An empty hash fails without contacting the service.
func (c *Client) AskBlockNumByHash(ctx context.Context, hash string) model.Outcome[int64] {
	ctx, span := tracing.Tracer("metadata").Start(ctx, "Client.AskBlockNumByHash")
	defer span.End()
	span.SetAttributes(attribute.String("block.hash", hash))

	if hash == "" {
		return lookupFailed[int64](blockHashLookup, "invalid_input", ErrMsgNoValue)
	}

	body, err := c.post(ctx, "BlockNumByHash", Request{
		Query:     blockNumByHashQuery,
		Variables: map[string]any{"id": hash},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "graphql request failed", "lookup", blockHashLookup, "error", err)
		return lookupFailed[int64](blockHashLookup, "transport_error",
			blockHashLookup+", unable to query graphql service: "+err.Error())
	}

	first, found, ok := firstElement(body, "blocks")
	if !ok {
		return lookupFailed[int64](blockHashLookup, "not_understood", errMsgBlockHashNotUnderstood)
	}
	if !found || !first.has("number") {
		return lookupFailed[int64](blockHashLookup, "no_value", ErrMsgNoValue)
	}

	var rec blockRecord
	if err := first.decode(&rec); err != nil {
		return lookupFailed[int64](blockHashLookup, "not_understood", errMsgBlockHashNotUnderstood)
	}
	if rec.Number == nil {
		return lookupFailed[int64](blockHashLookup, "no_value", ErrMsgNoValue)
	}
	metrics.LookupsTotal.WithLabelValues(blockHashLookup, "ok").Inc()
	return model.Ok(*rec.Number)
}

// firstElement walks {"data": {<name>: [...]}}. ok is false when the body
// does not have that shape; found is false when the array is empty.
func firstElement(body []byte, name string) (first object, found, ok bool) {
	var top object
	if err := json.Unmarshal(body, &top); err != nil || top == nil {
		return nil, false, false
	}
	var data object
	if err := json.Unmarshal(top["data"], &data); err != nil || data == nil {
		return nil, false, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data[name], &items); err != nil || items == nil {
		return nil, false, false
	}
	if len(items) == 0 {
		return nil, false, true
	}
	if err := json.Unmarshal(items[0], &first); err != nil || first == nil {
		return nil, false, false
	}
	return first, true, true
}

func (o object) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

func (o object) decode(v any) error {
	raw, err := json.Marshal(map[string]json.RawMessage(o))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func lookupFailed[T any](lookup, result, msg string) model.Outcome[T] {
	metrics.LookupsTotal.WithLabelValues(lookup, result).Inc()
	return model.Fail[T](msg)
}
