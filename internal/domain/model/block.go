package model

// BlockEra is derived from the block header, never stored.
type BlockEra string

const (
	BlockEraByron   BlockEra = "byron"
	BlockEraShelley BlockEra = "shelley"
)

func (e BlockEra) String() string {
	return string(e)
}

// EraFromVRFKey returns Byron when the block carries no VRF key, Shelley otherwise.
func EraFromVRFKey(hasVRFKey bool) BlockEra {
	if hasVRFKey {
		return BlockEraShelley
	}
	return BlockEraByron
}

// BlockFrag identifies the block that contains a transaction.
// SlotNo is the slot within the epoch.
type BlockFrag struct {
	Number  int64  `json:"number"`
	Hash    string `json:"hash"`
	EpochNo int64  `json:"epochNo"`
	SlotNo  int64  `json:"slotNo"`
}

// BlockRef is the block part of a transaction-hash lookup.
type BlockRef struct {
	Hash   string `json:"hash"`
	Number int64  `json:"number"`
}

// BlockNumByTxHash is the result of looking up a transaction's containing block.
type BlockNumByTxHash struct {
	Hash  string   `json:"hash"`
	Block BlockRef `json:"block"`
}
