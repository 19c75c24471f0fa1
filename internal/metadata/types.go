package metadata

import "encoding/json"

// Failure messages returned in the Outcome channel.
const (
	ErrMsgNoValue = "no value"

	errMsgTxHashNotUnderstood    = "Did not understand graphql response"
	errMsgBlockHashNotUnderstood = "askBlockNumByHash, Did not understand graphql response"

	txHashLookup    = "askBlockNumByTxHash"
	blockHashLookup = "askBlockNumByHash"
)

const blockNumByTxHashQuery = `
query BlockNumByTxHash($hashId: Hash32HexString!) {
  transactions(
    where: {
      hash: {
        _eq: $hashId
      }
    }
  ) {
    hash
    block {
      number
      hash
    }
  }
}`

const blockNumByHashQuery = `
query BlockNumByHash($id: Hash32HexString!) {
  blocks(
    where: {
      hash: {
        _eq: $id
      }
    }
  ) {
    number
  }
}`

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

// object is one layer of an untyped JSON object; members are decoded lazily.
type object map[string]json.RawMessage

type txRecord struct {
	Hash  string      `json:"hash"`
	Block blockRecord `json:"block"`
}

// Number is nil when the service reports the block number as null.
type blockRecord struct {
	Hash   string `json:"hash"`
	Number *int64 `json:"number"`
}
