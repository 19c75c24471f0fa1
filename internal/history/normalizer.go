package history

import (
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
)

// Formal certificate types as named by the combined_certificates view.
const (
	FormalTypeRegKey     = "CertRegKey"
	FormalTypeDeregKey   = "CertDeregKey"
	FormalTypeDelegate   = "CertDelegate"
	FormalTypeRegPool    = "CertRegPool"
	FormalTypeRetirePool = "CertRetirePool"
	FormalTypeMIR        = "CertMir"
)

// NormalizeRow maps one history row to a Transaction. It never fails:
// NULL aggregates become empty lists and unknown certificates are dropped.
func NormalizeRow(row store.HistoryRow) model.Transaction {
	inputs := make([]model.TransInput, 0, len(row.Inputs))
	for _, in := range row.Inputs {
		inputs = append(inputs, model.TransInput{
			Address: in.Address,
			Amount:  in.Value.String(),
			ID:      in.SourceTxHash + strconv.Itoa(in.OutputIndex),
			Index:   in.OutputIndex,
			TxHash:  in.SourceTxHash,
		})
	}

	outputs := make([]model.TransOutput, 0, len(row.Outputs))
	for _, out := range row.Outputs {
		outputs = append(outputs, model.TransOutput{
			Address: out.Address,
			Amount:  out.Value.String(),
		})
	}

	withdrawals := make([]model.Withdrawal, 0, len(row.Withdrawals))
	for _, w := range row.Withdrawals {
		withdrawals = append(withdrawals, model.Withdrawal{
			Address: w.StakeCred,
			Amount:  w.Amount.String(),
		})
	}

	certificates := make([]model.Certificate, 0, len(row.Certificates))
	for _, certRow := range row.Certificates {
		cert, ok := RowToCertificate(certRow)
		if !ok {
			// Unrecognized formal types are dropped; only the metric records them.
			metrics.CertificatesDropped.Inc()
			continue
		}
		certificates = append(certificates, cert)
	}

	var metadata *string
	if row.Metadata != nil {
		m := hex.EncodeToString(row.Metadata)
		metadata = &m
	}

	return model.Transaction{
		Hash: hex.EncodeToString(row.Hash),
		Block: model.BlockFrag{
			Number:  row.BlockNumber,
			Hash:    hex.EncodeToString(row.BlockHash),
			EpochNo: row.BlockEpochNo,
			SlotNo:  row.BlockSlotInEpoch,
		},
		Fee:          row.Fee,
		Metadata:     metadata,
		IncludedAt:   row.IncludedAt.UTC(),
		Inputs:       inputs,
		Outputs:      outputs,
		TTL:          model.MaxTTL,
		BlockEra:     model.EraFromVRFKey(row.BlockHasVRFKey),
		TxIndex:      row.TxIndex,
		Withdrawals:  withdrawals,
		Certificates: certificates,
	}
}

// RowToCertificate dispatches on the formal type. It returns false for a
// formal type it does not know.
func RowToCertificate(row store.CertificateRow) (model.Certificate, bool) {
	switch row.FormalType {
	case FormalTypeRegKey:
		return model.StakeRegistration{
			CertIndex:       row.CertIndex,
			StakeCredential: deref(row.StakeCred),
		}, true
	case FormalTypeDeregKey:
		return model.StakeDeregistration{
			CertIndex:       row.CertIndex,
			StakeCredential: deref(row.StakeCred),
		}, true
	case FormalTypeDelegate:
		return model.StakeDelegation{
			CertIndex:       row.CertIndex,
			StakeCredential: deref(row.StakeCred),
			PoolKeyHash:     deref(row.PoolHashKey),
		}, true
	case FormalTypeRegPool:
		return model.PoolRegistration{
			CertIndex:  row.CertIndex,
			PoolParams: poolParams(row),
		}, true
	case FormalTypeRetirePool:
		var epoch int64
		if row.Epoch != nil {
			epoch = *row.Epoch
		}
		return model.PoolRetirement{
			CertIndex:   row.CertIndex,
			PoolKeyHash: deref(row.PoolHashKey),
			Epoch:       epoch,
		}, true
	case FormalTypeMIR:
		rewards := make(map[string]string, len(row.Rewards))
		for cred, amount := range row.Rewards {
			rewards[cred] = amount.String()
		}
		return model.MoveInstantaneousRewardsCert{
			CertIndex: row.CertIndex,
			Pot:       model.MIRPot(deref(row.Pot)),
			Rewards:   rewards,
		}, true
	default:
		return nil, false
	}
}

func poolParams(row store.CertificateRow) model.PoolParams {
	owners := row.PoolOwners
	if owners == nil {
		owners = []string{}
	}
	relays := make([]model.PoolRelay, 0, len(row.Relays))
	for _, r := range row.Relays {
		relays = append(relays, model.PoolRelay{
			IPv4:       r.IPv4,
			IPv6:       r.IPv6,
			DNSName:    r.DNSName,
			DNSSrvName: r.DNSSrvName,
			Port:       r.Port,
		})
	}
	var meta *model.PoolMetadata
	if row.MetadataURL != nil {
		meta = &model.PoolMetadata{
			URL:          *row.MetadataURL,
			MetadataHash: deref(row.MetadataHash),
		}
	}
	return model.PoolParams{
		Operator:      deref(row.PoolHashKey),
		VRFKeyHash:    deref(row.VRFKey),
		Pledge:        numberString(row.Pledge),
		Cost:          numberString(row.Cost),
		Margin:        numberString(row.Margin),
		RewardAccount: deref(row.RewardAccount),
		PoolOwners:    owners,
		Relays:        relays,
		PoolMetadata:  meta,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func numberString(n *json.Number) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
