package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformedAggregate marks a nested aggregate column that could not be decoded.
var ErrMalformedAggregate = errors.New("malformed aggregate column")

// HistoryFilter selects the transactions returned by a HistorySource.
// Only blocks with Lower < number <= Upper qualify.
type HistoryFilter struct {
	Addresses    []string
	PaymentCreds []string // store binary literals, e.g. `\xab01...`
	Upper        int64
	Lower        int64
	Limit        int
}

//go:generate mockgen -destination=mocks/mock_history_source.go -package=mocks . HistorySource

// HistorySource answers transaction-history requests in one round trip.
// Rows come back ordered by block time, then by index within the block.
type HistorySource interface {
	QueryHistory(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error)
}

// InputTuple is one element of a transaction's input aggregate.
type InputTuple struct {
	Address      string
	Value        json.Number
	SourceTxHash string // hex
	OutputIndex  int
}

// OutputTuple is one element of the output aggregate.
type OutputTuple struct {
	Address string
	Value   json.Number
}

// WithdrawalTuple is one element of the withdrawal aggregate.
type WithdrawalTuple struct {
	StakeCred string // hex
	Amount    json.Number
}

// CertificateRow is one row of the combined_certificates view.
// Fields irrelevant to FormalType are nil.
type CertificateRow struct {
	TxID          int64                  `json:"txId"`
	FormalType    string                 `json:"formalType"`
	CertIndex     int                    `json:"certIndex"`
	StakeCred     *string                `json:"stakeCred"`
	PoolHashKey   *string                `json:"poolHashKey"`
	Epoch         *int64                 `json:"epoch"`
	VRFKey        *string                `json:"vrfKey"`
	Pledge        *json.Number           `json:"pledge"`
	RewardAccount *string                `json:"rewardAccount"`
	Cost          *json.Number           `json:"cost"`
	Margin        *json.Number           `json:"margin"`
	MetadataURL   *string                `json:"metadataUrl"`
	MetadataHash  *string                `json:"metadataHash"`
	PoolOwners    []string               `json:"poolOwners"`
	Relays        []RelayRow             `json:"relays"`
	Pot           *string                `json:"pot"`
	Rewards       map[string]json.Number `json:"rewards"`
}

type RelayRow struct {
	IPv4       *string `json:"ipv4"`
	IPv6       *string `json:"ipv6"`
	DNSName    *string `json:"dnsName"`
	DNSSrvName *string `json:"dnsSrvName"`
	Port       *int    `json:"port"`
}

// HistoryRow is the decoded shape of one history query row. Aggregate slices
// are nil when the column was NULL.
type HistoryRow struct {
	Hash             []byte
	Fee              string
	TxIndex          int
	BlockNumber      int64
	BlockHash        []byte
	BlockEpochNo     int64
	BlockSlotNo      int64
	BlockSlotInEpoch int64
	BlockHasVRFKey   bool
	IncludedAt       time.Time
	Inputs           []InputTuple
	Outputs          []OutputTuple
	Withdrawals      []WithdrawalTuple
	Certificates     []CertificateRow
	Metadata         []byte
}
