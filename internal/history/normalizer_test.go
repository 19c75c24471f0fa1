package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/domain/model"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/metrics"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
)

func strPtr(s string) *string { return &s }

func numPtr(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func sampleRow() store.HistoryRow {
	return store.HistoryRow{
		Hash:             []byte{0xaa, 0x01},
		Fee:              "168273",
		TxIndex:          2,
		BlockNumber:      4512067,
		BlockHash:        []byte{0xbb, 0x02},
		BlockEpochNo:     210,
		BlockSlotNo:      4492800 + 1234,
		BlockSlotInEpoch: 1234,
		BlockHasVRFKey:   true,
		IncludedAt:       time.Date(2020, 8, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		Inputs: []store.InputTuple{
			{Address: "addr_in", Value: "1000000", SourceTxHash: "cc03", OutputIndex: 1},
		},
		Outputs: []store.OutputTuple{
			{Address: "addr_out", Value: "831727"},
		},
		Withdrawals: []store.WithdrawalTuple{
			{StakeCred: "e1dd", Amount: "5000"},
		},
		Metadata: []byte{0xa1, 0x00},
	}
}

func TestNormalizeRow(t *testing.T) {
	tx := NormalizeRow(sampleRow())

	assert.Equal(t, "aa01", tx.Hash)
	assert.Equal(t, model.BlockFrag{Number: 4512067, Hash: "bb02", EpochNo: 210, SlotNo: 1234}, tx.Block)
	assert.Equal(t, "168273", tx.Fee)
	require.NotNil(t, tx.Metadata)
	assert.Equal(t, "a100", *tx.Metadata)
	assert.Equal(t, time.Date(2020, 8, 1, 10, 0, 0, 0, time.UTC), tx.IncludedAt)
	assert.Equal(t, time.UTC, tx.IncludedAt.Location())
	assert.Equal(t, []model.TransInput{
		{Address: "addr_in", Amount: "1000000", ID: "cc031", Index: 1, TxHash: "cc03"},
	}, tx.Inputs)
	assert.Equal(t, []model.TransOutput{{Address: "addr_out", Amount: "831727"}}, tx.Outputs)
	assert.Equal(t, []model.Withdrawal{{Address: "e1dd", Amount: "5000"}}, tx.Withdrawals)
	assert.Equal(t, model.MaxTTL, tx.TTL)
	assert.Equal(t, model.BlockEraShelley, tx.BlockEra)
	assert.Equal(t, 2, tx.TxIndex)
	assert.NotNil(t, tx.Certificates)
	assert.Empty(t, tx.Certificates)
}

func TestNormalizeRow_NullAggregatesBecomeEmptyLists(t *testing.T) {
	row := sampleRow()
	row.Inputs = nil
	row.Outputs = nil
	row.Withdrawals = nil
	row.Certificates = nil
	row.Metadata = nil

	tx := NormalizeRow(row)

	assert.NotNil(t, tx.Inputs)
	assert.NotNil(t, tx.Outputs)
	assert.NotNil(t, tx.Withdrawals)
	assert.NotNil(t, tx.Certificates)
	assert.Nil(t, tx.Metadata)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"inputs":[]`)
	assert.Contains(t, string(raw), `"certificates":[]`)
	assert.Contains(t, string(raw), `"metadata":null`)
}

func TestNormalizeRow_ByronEra(t *testing.T) {
	row := sampleRow()
	row.BlockHasVRFKey = false

	assert.Equal(t, model.BlockEraByron, NormalizeRow(row).BlockEra)
}

func TestNormalizeRow_LargeAmountsKeepPrecision(t *testing.T) {
	row := sampleRow()
	row.Fee = "123456789012345678"
	row.Outputs = []store.OutputTuple{{Address: "a", Value: "45000000000000000"}}

	tx := NormalizeRow(row)

	assert.Equal(t, "123456789012345678", tx.Fee)
	assert.Equal(t, "45000000000000000", tx.Outputs[0].Amount)
}

func TestNormalizeRow_UnknownCertificateDropped(t *testing.T) {
	row := sampleRow()
	row.Certificates = []store.CertificateRow{
		{FormalType: FormalTypeRegKey, CertIndex: 0, StakeCred: strPtr("e1aa")},
		{FormalType: "CertGenesisDelegation", CertIndex: 1},
		{FormalType: FormalTypeDelegate, CertIndex: 2, StakeCred: strPtr("e1aa"), PoolHashKey: strPtr("pool01")},
	}
	before := testutil.ToFloat64(metrics.CertificatesDropped)

	tx := NormalizeRow(row)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CertificatesDropped))
	require.Len(t, tx.Certificates, 2)
	assert.Equal(t, model.StakeRegistration{CertIndex: 0, StakeCredential: "e1aa"}, tx.Certificates[0])
	assert.Equal(t, model.StakeDelegation{CertIndex: 2, StakeCredential: "e1aa", PoolKeyHash: "pool01"}, tx.Certificates[1])
}

func TestRowToCertificate(t *testing.T) {
	port := 3001
	epoch := int64(215)

	tests := []struct {
		name string
		row  store.CertificateRow
		want model.Certificate
	}{
		{
			name: "deregistration",
			row:  store.CertificateRow{FormalType: FormalTypeDeregKey, CertIndex: 1, StakeCred: strPtr("e1aa")},
			want: model.StakeDeregistration{CertIndex: 1, StakeCredential: "e1aa"},
		},
		{
			name: "pool registration",
			row: store.CertificateRow{
				FormalType:    FormalTypeRegPool,
				PoolHashKey:   strPtr("pool01"),
				VRFKey:        strPtr("vrf01"),
				Pledge:        numPtr("500000000"),
				Cost:          numPtr("340000000"),
				Margin:        numPtr("0.05"),
				RewardAccount: strPtr("e1dd"),
				MetadataURL:   strPtr("https://example.org/p.json"),
				MetadataHash:  strPtr("mh01"),
				PoolOwners:    []string{"owner01"},
				Relays:        []store.RelayRow{{IPv4: strPtr("10.0.0.1"), Port: &port}},
			},
			want: model.PoolRegistration{PoolParams: model.PoolParams{
				Operator:      "pool01",
				VRFKeyHash:    "vrf01",
				Pledge:        "500000000",
				Cost:          "340000000",
				Margin:        "0.05",
				RewardAccount: "e1dd",
				PoolOwners:    []string{"owner01"},
				Relays:        []model.PoolRelay{{IPv4: strPtr("10.0.0.1"), Port: &port}},
				PoolMetadata:  &model.PoolMetadata{URL: "https://example.org/p.json", MetadataHash: "mh01"},
			}},
		},
		{
			name: "pool registration without metadata or owners",
			row:  store.CertificateRow{FormalType: FormalTypeRegPool, PoolHashKey: strPtr("pool02")},
			want: model.PoolRegistration{PoolParams: model.PoolParams{
				Operator:   "pool02",
				Pledge:     "0",
				Cost:       "0",
				Margin:     "0",
				PoolOwners: []string{},
				Relays:     []model.PoolRelay{},
			}},
		},
		{
			name: "pool retirement",
			row:  store.CertificateRow{FormalType: FormalTypeRetirePool, CertIndex: 0, PoolHashKey: strPtr("pool01"), Epoch: &epoch},
			want: model.PoolRetirement{PoolKeyHash: "pool01", Epoch: 215},
		},
		{
			name: "mir",
			row: store.CertificateRow{
				FormalType: FormalTypeMIR,
				Pot:        strPtr("Reserve"),
				Rewards:    map[string]json.Number{"e1aa": "1000000", "e1bb": "2"},
			},
			want: model.MoveInstantaneousRewardsCert{
				Pot:     model.MIRPotReserve,
				Rewards: map[string]string{"e1aa": "1000000", "e1bb": "2"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RowToCertificate(tt.row)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowToCertificate_Unknown(t *testing.T) {
	got, ok := RowToCertificate(store.CertificateRow{FormalType: "CertSomethingNew"})
	assert.False(t, ok)
	assert.Nil(t, got)
}
