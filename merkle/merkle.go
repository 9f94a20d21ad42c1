// Package merkle implements the append-only Merkle chain backing the
// ledger's tamper-evident audit trail.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/oarkflow/aegis/errs"
)

// Leaf is an opaque 32-byte hash appended to the tree.
type Leaf [32]byte

// Side identifies which side of a parent hash a sibling sits on.
type Side int

const (
	Left Side = iota
	Right
)

// ProofStep is one sibling hash and its side on the path from a leaf to the
// root.
type ProofStep struct {
	Sibling Leaf
	Side    Side
}

// Proof is an inclusion proof for a single leaf, independently verifiable
// against its embedded root.
type Proof struct {
	Leaf Leaf
	Path []ProofStep
	Root Leaf
}

// Verify recomputes the root by folding Path onto Leaf and compares it to
// the proof's embedded Root.
func (p Proof) Verify() bool {
	current := p.Leaf
	for _, step := range p.Path {
		if step.Side == Left {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}
	return current == p.Root
}

// Tree is an append-only binary Merkle tree over 32-byte leaves. Odd levels
// duplicate the last node when combining; the root of an empty tree is
// SHA-256 of the empty byte string. Append invalidates the cached root;
// prior leaves are never reordered or removed.
type Tree struct {
	leaves []Leaf
	root   *Leaf
}

// New returns an empty Merkle tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of leaves currently in the tree.
func (t *Tree) Len() int { return len(t.leaves) }

// Append adds a leaf and invalidates the cached root.
func (t *Tree) Append(leaf Leaf) {
	t.leaves = append(t.leaves, leaf)
	t.root = nil
}

// Root returns the current Merkle root, computing and caching it if
// necessary.
func (t *Tree) Root() Leaf {
	if t.root != nil {
		return *t.root
	}
	if len(t.leaves) == 0 {
		empty := Leaf(sha256.Sum256(nil))
		t.root = &empty
		return empty
	}

	level := make([]Leaf, len(t.leaves))
	copy(level, t.leaves)
	for len(level) > 1 {
		level = combineLevel(level)
	}
	t.root = &level[0]
	return level[0]
}

func combineLevel(level []Leaf) []Leaf {
	next := make([]Leaf, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, hashPair(left, right))
	}
	return next
}

// hashPair combines two child nodes the way the original chain does: each
// child's hex digest (ASCII), concatenated, then hashed — not the raw
// 32-byte digests. This is fixed by the need to match existing deployed
// roots and must never change to a raw-byte concatenation.
func hashPair(left, right Leaf) Leaf {
	combined := make([]byte, 0, hex.EncodedLen(32)*2)
	combined = appendHex(combined, left)
	combined = appendHex(combined, right)
	return sha256.Sum256(combined)
}

func appendHex(dst []byte, leaf Leaf) []byte {
	encoded := make([]byte, hex.EncodedLen(len(leaf)))
	hex.Encode(encoded, leaf[:])
	return append(dst, encoded...)
}

// Proof returns the inclusion proof for the leaf at index, and the current
// root. It returns MerkleIndexOutOfRange if index is not a valid leaf index.
func (t *Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= len(t.leaves) {
		return Proof{}, errs.New(errs.MerkleIndexOutOfRange, "proof index out of range")
	}

	level := make([]Leaf, len(t.leaves))
	copy(level, t.leaves)
	cur := index
	var path []ProofStep

	for len(level) > 1 {
		pairIndex := cur - cur%2
		left := level[pairIndex]
		right := left
		if pairIndex+1 < len(level) {
			right = level[pairIndex+1]
		}

		if cur == pairIndex {
			path = append(path, ProofStep{Sibling: right, Side: Right})
		} else {
			path = append(path, ProofStep{Sibling: left, Side: Left})
		}

		level = combineLevel(level)
		cur /= 2
	}

	return Proof{Leaf: t.leaves[index], Path: path, Root: t.Root()}, nil
}

// Equal reports whether two leaves are byte-identical.
func Equal(a, b Leaf) bool {
	return bytes.Equal(a[:], b[:])
}
