package postgres

import (
	"github.com/lib/pq"
	"github.com/waterelder/yoroi-graphql-migration-backend/internal/store"
)

// historyQuery finds the distinct hashes of transactions touching the filter
// set through any of four paths (spent input's source output, output,
// stake certificate, withdrawal), then assembles every aggregate in
// correlated subqueries so the whole history is one round trip.
//
// $1 addresses (varchar[]), $2 upper block bound (inclusive), $3 lower block
// bound (exclusive), $4 limit, $5 payment credentials as bytea literals.
//
// Each aggregate is a json array of anonymous records, so sub-fields arrive
// as f1..fN. Input order is tx_in.id (insertion order), outputs by index,
// withdrawals by id, certificates by "certIndex".
const historyQuery = `
	WITH hashes AS (
		SELECT DISTINCT hash
		FROM (
			SELECT tx.hash AS hash
			FROM tx
			JOIN tx_in
			  ON tx_in.tx_in_id = tx.id
			JOIN tx_out source_tx_out
			  ON tx_in.tx_out_id = source_tx_out.tx_id
			 AND tx_in.tx_out_index::smallint = source_tx_out.index::smallint
			JOIN tx source_tx
			  ON source_tx_out.tx_id = source_tx.id
			WHERE source_tx_out.address = ANY(($1)::varchar array)
			   OR source_tx_out.payment_cred = ANY(($5)::bytea array)
			UNION
			SELECT tx.hash AS hash
			FROM tx
			JOIN tx_out
			  ON tx.id = tx_out.tx_id
			WHERE tx_out.address = ANY(($1)::varchar array)
			   OR tx_out.payment_cred = ANY(($5)::bytea array)
			UNION
			SELECT tx.hash AS hash
			FROM tx
			JOIN combined_certificates AS certs
			  ON tx.id = certs."txId"
			WHERE certs."formalType" IN ('CertRegKey', 'CertDeregKey', 'CertDelegate')
			  AND certs."stakeCred" = ANY(($1)::varchar array)
			UNION
			SELECT tx.hash AS hash
			FROM tx
			JOIN withdrawal AS w
			  ON tx.id = w.tx_id
			JOIN stake_address AS addr
			  ON w.addr_id = addr.id
			WHERE addr.hash_raw = ANY(($5)::bytea array)
		) matched
	)
	SELECT tx.hash
	     , tx.fee
	     , tx.block_index AS "txIndex"
	     , block.block_no AS "blockNumber"
	     , block.hash AS "blockHash"
	     , block.epoch_no AS "blockEpochNo"
	     , block.slot_no AS "blockSlotNo"
	     , block.epoch_slot_no AS "blockSlotInEpoch"
	     , block.vrf_key IS NOT NULL AS "blockHasVrfKey"
	     , block.time AT TIME ZONE 'UTC' AS "includedAt"
	     , (SELECT json_agg(( source_tx_out.address
	                        , source_tx_out.value
	                        , encode(source_tx.hash, 'hex')
	                        , tx_in.tx_out_index) ORDER BY tx_in.id ASC)
	        FROM tx inadd_tx
	        JOIN tx_in
	          ON tx_in.tx_in_id = inadd_tx.id
	        JOIN tx_out source_tx_out
	          ON tx_in.tx_out_id = source_tx_out.tx_id
	         AND tx_in.tx_out_index::smallint = source_tx_out.index::smallint
	        JOIN tx source_tx
	          ON source_tx_out.tx_id = source_tx.id
	        WHERE inadd_tx.hash = tx.hash) AS "inAddrValPairs"
	     , (SELECT json_agg(("address", "value") ORDER BY "index" ASC)
	        FROM "TransactionOutput" hasura_to
	        WHERE hasura_to."txHash" = tx.hash) AS "outAddrValPairs"
	     , (SELECT json_agg((encode(addr.hash_raw, 'hex'), w.amount) ORDER BY w.id ASC)
	        FROM withdrawal AS w
	        JOIN stake_address AS addr
	          ON addr.id = w.addr_id
	        WHERE w.tx_id = tx.id) AS withdrawals
	     , pool_meta_data.hash AS metadata
	     , (SELECT json_agg(row_to_json(combined_certificates) ORDER BY "certIndex" ASC)
	        FROM combined_certificates
	        WHERE "txId" = tx.id) AS certificates
	FROM tx
	JOIN hashes
	  ON hashes.hash = tx.hash
	JOIN block
	  ON block.id = tx.block
	LEFT JOIN pool_meta_data
	  ON tx.id = pool_meta_data.registered_tx_id
	WHERE block.block_no <= $2
	  AND block.block_no > $3
	ORDER BY block.time ASC, tx.block_index ASC
	LIMIT $4
`

// BuildHistoryQuery returns the history query text and its positional arguments.
// Nil slices are bound as empty arrays, never NULL.
func BuildHistoryQuery(filter store.HistoryFilter) (string, []any) {
	addresses := filter.Addresses
	if addresses == nil {
		addresses = []string{}
	}
	creds := filter.PaymentCreds
	if creds == nil {
		creds = []string{}
	}
	return historyQuery, []any{
		pq.Array(addresses),
		filter.Upper,
		filter.Lower,
		filter.Limit,
		pq.Array(creds),
	}
}
