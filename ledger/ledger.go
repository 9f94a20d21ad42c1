package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/oarkflow/aegis/errs"
	"github.com/oarkflow/aegis/merkle"
	"github.com/oarkflow/aegis/signing"
)

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Backend persists records and retrieves them back out. Implementations
// must preserve insertion order from GetAll and support lookup by ID.
type Backend interface {
	Append(Record) error
	Get(id string) (Record, bool, error)
	GetAll() ([]Record, error)
	Close() error
}

// Ledger is the append-only, tamper-evident audit log. It owns a Merkle
// tree over record hashes, a monotonic sequence counter, and an optional
// signing provider; all three are rebuilt from the backend's existing
// records on open so a ledger can be reopened against the same store.
type Ledger struct {
	mu       sync.Mutex
	backend  Backend
	tree     *merkle.Tree
	signer   signing.Provider
	verifyPK ed25519.PublicKey
	nextSeq  int64
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithSigner attaches a signing provider; every appended record is signed
// with it.
func WithSigner(p signing.Provider) Option {
	return func(l *Ledger) { l.signer = p }
}

// WithVerificationKey sets the Ed25519 public key VerifyIntegrity checks
// signatures against. Without it, VerifyIntegrity skips signature checks
// and reports that fact via VerifyResult.SignaturesUnverified.
func WithVerificationKey(pub ed25519.PublicKey) Option {
	return func(l *Ledger) { l.verifyPK = pub }
}

// New opens a ledger over backend, replaying its existing records into the
// Merkle tree and sequence counter.
func New(backend Backend, opts ...Option) (*Ledger, error) {
	l := &Ledger{backend: backend, tree: merkle.New(), nextSeq: 1}
	for _, opt := range opts {
		opt(l)
	}

	records, err := backend.GetAll()
	if err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "load existing records", err)
	}
	for _, r := range records {
		hash, err := r.Hash()
		if err != nil {
			return nil, err
		}
		l.tree.Append(merkle.Leaf(hash))
		if r.Sequence >= l.nextSeq {
			l.nextSeq = r.Sequence + 1
		}
	}
	return l, nil
}

// Append creates, signs, and persists a new record, returning it with its
// assigned sequence number and signature populated.
func (l *Ledger) Append(operation string, inputs [][2]float64, output [2]float64, coverage float64, invariantPassed bool, parentID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := newRecord(l.nextSeq, operation, inputs, output, coverage, invariantPassed, parentID)
	hash, err := rec.Hash()
	if err != nil {
		return Record{}, err
	}

	if l.signer != nil {
		sig, err := l.signer.Sign(hash[:])
		if err != nil {
			return Record{}, errs.Wrap(errs.SignatureInvalid, "sign record", err)
		}
		rec.Signature = fmt.Sprintf("%x", sig)
	}

	if err := l.backend.Append(rec); err != nil {
		return Record{}, errs.Wrap(errs.BackendFailure, "append record", err)
	}

	l.tree.Append(merkle.Leaf(hash))
	l.nextSeq++
	return rec, nil
}

// Trace walks parent_id links backward from id and returns the chain in
// chronological (root-first) order.
func (l *Ledger) Trace(id string) ([]Record, error) {
	var chain []Record
	current := id
	for current != "" {
		rec, ok, err := l.backend.Get(current)
		if err != nil {
			return nil, errs.Wrap(errs.BackendFailure, "trace lookup", err)
		}
		if !ok {
			break
		}
		chain = append(chain, rec)
		current = rec.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Root returns the current Merkle root over all appended record hashes.
func (l *Ledger) Root() merkle.Leaf {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Root()
}

// VerifyResult reports the outcome of a VerifyIntegrity pass.
type VerifyResult struct {
	OK                   bool
	SignaturesUnverified bool
	FailureReason        string
}

// VerifyIntegrity recomputes the Merkle root from the backend's current
// records, checks the sequence counter is strictly monotonic, and — when a
// verification key is configured — checks every record's signature.
func (l *Ledger) VerifyIntegrity() (VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.backend.GetAll()
	if err != nil {
		return VerifyResult{}, errs.Wrap(errs.BackendFailure, "load records for verification", err)
	}

	lastSeq := int64(-1)
	recomputed := merkle.New()
	for _, r := range records {
		if r.Sequence <= lastSeq {
			return VerifyResult{OK: false, FailureReason: "sequence not strictly monotonic"}, nil
		}
		lastSeq = r.Sequence

		hash, err := r.Hash()
		if err != nil {
			return VerifyResult{}, err
		}
		recomputed.Append(merkle.Leaf(hash))

		if l.verifyPK != nil {
			if !verifySignature(l.verifyPK, hash, r.Signature) {
				return VerifyResult{OK: false, FailureReason: "invalid signature on record " + r.ID}, nil
			}
		}
	}

	if recomputed.Root() != l.tree.Root() {
		return VerifyResult{OK: false, FailureReason: "merkle root mismatch"}, nil
	}

	return VerifyResult{OK: true, SignaturesUnverified: l.verifyPK == nil}, nil
}

// GetAll returns every record currently stored, in insertion order.
func (l *Ledger) GetAll() ([]Record, error) {
	records, err := l.backend.GetAll()
	if err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "get all records", err)
	}
	return records, nil
}

// GetByID returns the record with the given ID, if present.
func (l *Ledger) GetByID(id string) (Record, bool, error) {
	rec, ok, err := l.backend.Get(id)
	if err != nil {
		return Record{}, false, errs.Wrap(errs.BackendFailure, "get record", err)
	}
	return rec, ok, nil
}

// Len returns the number of records currently stored.
func (l *Ledger) Len() (int, error) {
	records, err := l.backend.GetAll()
	if err != nil {
		return 0, errs.Wrap(errs.BackendFailure, "len", err)
	}
	return len(records), nil
}

// Close releases the underlying backend's resources.
func (l *Ledger) Close() error {
	return l.backend.Close()
}
