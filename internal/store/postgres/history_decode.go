package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
)

// Anonymous records come out of json_agg as {"f1": ..., "f2": ...}.

type inputRecord struct {
	Address      string      `json:"f1"`
	Value        json.Number `json:"f2"`
	SourceTxHash string      `json:"f3"`
	OutputIndex  int         `json:"f4"`
}

type outputRecord struct {
	Address string      `json:"f1"`
	Value   json.Number `json:"f2"`
}

type withdrawalRecord struct {
	StakeCred string      `json:"f1"`
	Amount    json.Number `json:"f2"`
}

// decodeAggregate decodes a json_agg column. A NULL column (or a JSON null)
// yields a nil slice. Numbers are kept as their decimal text.
func decodeAggregate[T any](column string, raw []byte) ([]T, error) {
	if raw == nil {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out []T
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w %s: %v", store.ErrMalformedAggregate, column, err)
	}
	return out, nil
}

func decodeInputs(raw []byte) ([]store.InputTuple, error) {
	records, err := decodeAggregate[inputRecord]("inAddrValPairs", raw)
	if err != nil || records == nil {
		return nil, err
	}
	out := make([]store.InputTuple, len(records))
	for i, r := range records {
		if r.Value == "" {
			return nil, fmt.Errorf("%w inAddrValPairs[%d]: missing value", store.ErrMalformedAggregate, i)
		}
		out[i] = store.InputTuple{
			Address:      r.Address,
			Value:        r.Value,
			SourceTxHash: r.SourceTxHash,
			OutputIndex:  r.OutputIndex,
		}
	}
	return out, nil
}

func decodeOutputs(raw []byte) ([]store.OutputTuple, error) {
	records, err := decodeAggregate[outputRecord]("outAddrValPairs", raw)
	if err != nil || records == nil {
		return nil, err
	}
	out := make([]store.OutputTuple, len(records))
	for i, r := range records {
		if r.Value == "" {
			return nil, fmt.Errorf("%w outAddrValPairs[%d]: missing value", store.ErrMalformedAggregate, i)
		}
		out[i] = store.OutputTuple{Address: r.Address, Value: r.Value}
	}
	return out, nil
}

func decodeWithdrawals(raw []byte) ([]store.WithdrawalTuple, error) {
	records, err := decodeAggregate[withdrawalRecord]("withdrawals", raw)
	if err != nil || records == nil {
		return nil, err
	}
	out := make([]store.WithdrawalTuple, len(records))
	for i, r := range records {
		if r.Amount == "" {
			return nil, fmt.Errorf("%w withdrawals[%d]: missing amount", store.ErrMalformedAggregate, i)
		}
		out[i] = store.WithdrawalTuple{StakeCred: r.StakeCred, Amount: r.Amount}
	}
	return out, nil
}

func decodeCertificates(raw []byte) ([]store.CertificateRow, error) {
	return decodeAggregate[store.CertificateRow]("certificates", raw)
}
