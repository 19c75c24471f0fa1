package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// txObject is one transaction as it appears on the wire, keyed by member name.
type txObject map[string]json.RawMessage

// CompareResult holds the outcome of comparing locally computed history
// against a remote API response for the same request.
type CompareResult struct {
	Matching  []string        `json:"matching"`
	Missing   []string        `json:"missing"` // computed locally but absent remotely
	Extra     []string        `json:"extra"`   // returned remotely but not computed locally
	Divergent []DivergentTx   `json:"divergent"`
	Order     *OrderMismatch  `json:"order,omitempty"`
	Invalid   []InvalidObject `json:"invalid,omitempty"`
}

// DivergentTx records a member-level mismatch for a hash present on both sides.
type DivergentTx struct {
	Hash        string `json:"hash"`
	Field       string `json:"field"`
	LocalValue  string `json:"local_value"`
	RemoteValue string `json:"remote_value"`
}

// OrderMismatch is set when both sides hold the same hashes in a different order.
type OrderMismatch struct {
	Position int    `json:"position"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
}

// InvalidObject is a transaction without a usable hash.
type InvalidObject struct {
	Side     string `json:"side"`
	Position int    `json:"position"`
}

// HasMismatch returns true if anything other than matching transactions was found.
func (r *CompareResult) HasMismatch() bool {
	return len(r.Missing) > 0 || len(r.Extra) > 0 || len(r.Divergent) > 0 || r.Order != nil || len(r.Invalid) > 0
}

func txHash(obj txObject) (string, bool) {
	raw, ok := obj["hash"]
	if !ok {
		return "", false
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil || hash == "" {
		return "", false
	}
	return hash, true
}

// canonicalJSON re-encodes raw so that key order and whitespace do not
// count as differences. Numbers keep their literal text.
func canonicalJSON(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func indexByHash(side string, txs []txObject, result *CompareResult) (map[string]txObject, []string) {
	byHash := make(map[string]txObject, len(txs))
	order := make([]string, 0, len(txs))
	for i, tx := range txs {
		hash, ok := txHash(tx)
		if !ok {
			result.Invalid = append(result.Invalid, InvalidObject{Side: side, Position: i})
			continue
		}
		byHash[hash] = tx
		order = append(order, hash)
	}
	return byHash, order
}

// compareTransactions diffs two history responses keyed on transaction hash,
// member by member, and checks that shared hashes appear in the same order.
func compareTransactions(local, remote []txObject) CompareResult {
	var result CompareResult

	localMap, localOrder := indexByHash("local", local, &result)
	remoteMap, remoteOrder := indexByHash("remote", remote, &result)

	for hash, lt := range localMap {
		rt, found := remoteMap[hash]
		if !found {
			result.Missing = append(result.Missing, hash)
			continue
		}

		fields := make(map[string]struct{}, len(lt)+len(rt))
		for k := range lt {
			fields[k] = struct{}{}
		}
		for k := range rt {
			fields[k] = struct{}{}
		}

		diverged := false
		for field := range fields {
			lv, rv := "<absent>", "<absent>"
			if raw, ok := lt[field]; ok {
				lv = canonicalJSON(raw)
			}
			if raw, ok := rt[field]; ok {
				rv = canonicalJSON(raw)
			}
			if lv != rv {
				diverged = true
				result.Divergent = append(result.Divergent, DivergentTx{
					Hash:        hash,
					Field:       field,
					LocalValue:  lv,
					RemoteValue: rv,
				})
			}
		}
		if !diverged {
			result.Matching = append(result.Matching, hash)
		}
	}

	for hash := range remoteMap {
		if _, found := localMap[hash]; !found {
			result.Extra = append(result.Extra, hash)
		}
	}

	result.Order = firstOrderMismatch(localOrder, remoteOrder, localMap, remoteMap)

	sort.Strings(result.Matching)
	sort.Strings(result.Missing)
	sort.Strings(result.Extra)
	sort.Slice(result.Divergent, func(i, j int) bool {
		if result.Divergent[i].Hash == result.Divergent[j].Hash {
			return result.Divergent[i].Field < result.Divergent[j].Field
		}
		return result.Divergent[i].Hash < result.Divergent[j].Hash
	})

	return result
}

// firstOrderMismatch compares only the hashes both sides share, so a missing
// or extra transaction is not also reported as an ordering problem.
func firstOrderMismatch(localOrder, remoteOrder []string, localMap, remoteMap map[string]txObject) *OrderMismatch {
	shared := func(order []string, other map[string]txObject) []string {
		out := make([]string, 0, len(order))
		for _, h := range order {
			if _, ok := other[h]; ok {
				out = append(out, h)
			}
		}
		return out
	}
	l := shared(localOrder, remoteMap)
	r := shared(remoteOrder, localMap)
	for i := 0; i < len(l) && i < len(r); i++ {
		if l[i] != r[i] {
			return &OrderMismatch{Position: i, Local: l[i], Remote: r[i]}
		}
	}
	return nil
}

type reportHeader struct {
	Addresses   int    `json:"addresses"`
	UntilBlock  string `json:"until_block"`
	AfterTx     string `json:"after_tx,omitempty"`
	LocalCount  int    `json:"local_transactions"`
	RemoteCount int    `json:"remote_transactions"`
}

// printTextReport writes a human-readable report to w.
func printTextReport(w io.Writer, h reportHeader, result CompareResult) {
	fmt.Fprintln(w, "=== History Replay Report ===")
	fmt.Fprintf(w, "Addresses: %d\n", h.Addresses)
	fmt.Fprintf(w, "Until block: %s\n", h.UntilBlock)
	if h.AfterTx != "" {
		fmt.Fprintf(w, "After tx: %s\n", h.AfterTx)
	}
	fmt.Fprintf(w, "Local transactions: %d\n", h.LocalCount)
	fmt.Fprintf(w, "Remote transactions: %d\n", h.RemoteCount)
	fmt.Fprintf(w, "Matching: %d\n", len(result.Matching))
	fmt.Fprintf(w, "Missing: %d\n", len(result.Missing))
	fmt.Fprintf(w, "Extra: %d\n", len(result.Extra))
	fmt.Fprintf(w, "Divergent: %d\n", len(result.Divergent))

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "\n--- Missing (computed locally but not returned remotely) ---")
		for _, hash := range result.Missing {
			fmt.Fprintf(w, "  %s\n", hash)
		}
	}
	if len(result.Extra) > 0 {
		fmt.Fprintln(w, "\n--- Extra (returned remotely but not computed locally) ---")
		for _, hash := range result.Extra {
			fmt.Fprintf(w, "  %s\n", hash)
		}
	}
	if len(result.Divergent) > 0 {
		fmt.Fprintln(w, "\n--- Divergent (field mismatches) ---")
		for _, d := range result.Divergent {
			fmt.Fprintf(w, "  %s: %s local=%s remote=%s\n", d.Hash, d.Field, d.LocalValue, d.RemoteValue)
		}
	}
	if result.Order != nil {
		fmt.Fprintln(w, "\n--- Order ---")
		fmt.Fprintf(w, "  position %d: local=%s remote=%s\n", result.Order.Position, result.Order.Local, result.Order.Remote)
	}
	if len(result.Invalid) > 0 {
		fmt.Fprintln(w, "\n--- Invalid (no hash) ---")
		for _, inv := range result.Invalid {
			fmt.Fprintf(w, "  %s[%d]\n", inv.Side, inv.Position)
		}
	}

	fmt.Fprintln(w)
	if !result.HasMismatch() {
		fmt.Fprintln(w, "Result: MATCH")
	} else {
		fmt.Fprintln(w, "Result: MISMATCH")
	}
}

// printJSONReport writes a JSON report to w.
func printJSONReport(w io.Writer, h reportHeader, result CompareResult) error {
	report := struct {
		reportHeader
		Result  string        `json:"result"`
		Compare CompareResult `json:"compare"`
	}{
		reportHeader: h,
		Compare:      result,
	}
	if result.HasMismatch() {
		report.Result = "MISMATCH"
	} else {
		report.Result = "MATCH"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
