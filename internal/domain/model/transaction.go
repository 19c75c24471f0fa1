package model

import "time"

// MaxTTL is reported for every transaction; the store does not track time-to-live.
const MaxTTL = "2147483647"

// TransInput is a consumed prior output. ID is the source tx hash followed by the output index.
type TransInput struct {
	Address string `json:"address"`
	Amount  string `json:"amount"` // lovelace, decimal string
	ID      string `json:"id"`
	Index   int    `json:"index"`
	TxHash  string `json:"txHash"`
}

type TransOutput struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Withdrawal moves rewards out of the reward account identified by Address (hex stake credential).
type Withdrawal struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Transaction is a read-only, request-scoped projection of one transaction.
// Monetary fields are decimal strings; they never pass through a float.
type Transaction struct {
	Hash         string        `json:"hash"`
	Block        BlockFrag     `json:"block"`
	Fee          string        `json:"fee"`
	Metadata     *string       `json:"metadata"`
	IncludedAt   time.Time     `json:"includedAt"`
	Inputs       []TransInput  `json:"inputs"`
	Outputs      []TransOutput `json:"outputs"`
	TTL          string        `json:"ttl"`
	BlockEra     BlockEra      `json:"blockEra"`
	TxIndex      int           `json:"txIndex"`
	Withdrawals  []Withdrawal  `json:"withdrawals"`
	Certificates []Certificate `json:"certificates"`
}
