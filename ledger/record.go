// Package ledger implements the tamper-evident, Ed25519-signed,
// Merkle-chained audit ledger. Every recorded operation produces a
// monotonically sequenced, causally linkable, independently verifiable
// record; the ledger itself never mutates a record once appended.
package ledger

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/oarkflow/aegis/canon"
	"github.com/oarkflow/aegis/errs"
)

// Record is a single immutable audit entry. Sequence is a monotonic counter
// assigned by the ledger itself, never wall-clock time, so integrity checks
// never depend on clock skew between writers.
type Record struct {
	Sequence        int64
	ID              string
	ParentID        string
	Operation       string
	Inputs          [][2]float64
	Output          [2]float64
	Coverage        float64
	InvariantPassed bool
	Signature       string
}

// hashableValue renders r (minus its signature) to the map-of-any shape the
// canon package encodes, so record hashing and policy hashing run through
// the exact same canonical encoder.
func (r Record) hashableValue() map[string]any {
	inputs := make([]any, len(r.Inputs))
	for i, in := range r.Inputs {
		inputs[i] = canon.Pair(in[0], in[1])
	}
	var parent any
	if r.ParentID != "" {
		parent = r.ParentID
	}
	return map[string]any{
		"sequence":         float64(r.Sequence),
		"id":               r.ID,
		"parent_id":        parent,
		"operation":        r.Operation,
		"inputs":           inputs,
		"output":           canon.Pair(r.Output[0], r.Output[1]),
		"coverage":         r.Coverage,
		"invariant_passed": r.InvariantPassed,
	}
}

// Hash returns the SHA-256 hash of the record's canonical form, excluding
// the signature field.
func (r Record) Hash() ([32]byte, error) {
	encoded, err := canon.Marshal(r.hashableValue())
	if err != nil {
		return [32]byte{}, errs.Wrap(errs.LedgerInconsistent, "canonicalize record", err)
	}
	return sha256Sum(encoded), nil
}

// newRecord assembles a record with a fresh UUID, the given sequence, and no
// signature yet.
func newRecord(seq int64, operation string, inputs [][2]float64, output [2]float64, coverage float64, invariantPassed bool, parentID string) Record {
	return Record{
		Sequence:        seq,
		ID:              uuid.NewString(),
		ParentID:        parentID,
		Operation:       operation,
		Inputs:          inputs,
		Output:          output,
		Coverage:        coverage,
		InvariantPassed: invariantPassed,
	}
}

// verifySignature reports whether sigHex is a valid Ed25519 signature of
// hash under pub.
func verifySignature(pub ed25519.PublicKey, hash [32]byte, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, hash[:], sig)
}
