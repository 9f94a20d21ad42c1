package ledger

import (
	"testing"

	"github.com/oarkflow/aegis/signing"
)

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	l, err := New(NewMemoryBackend())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec, err := l.Append("add", [][2]float64{{1, 0.1}, {2, 0.2}}, [2]float64{3, 0.3}, 0.1, true, "")
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		want := int64(i + 1)
		if rec.Sequence != want {
			t.Errorf("Append %d: sequence = %d, want %d", i, rec.Sequence, want)
		}
	}
}

func TestVerifyIntegrityPassesOnCleanLedger(t *testing.T) {
	l, err := New(NewMemoryBackend())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append("add", nil, [2]float64{float64(i), 0}, 0, true, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	result, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if !result.OK {
		t.Errorf("expected OK, got failure: %s", result.FailureReason)
	}
	if !result.SignaturesUnverified {
		t.Errorf("expected SignaturesUnverified without a verification key")
	}
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	backend := NewMemoryBackend()
	l, err := New(backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := l.Append("add", nil, [2]float64{1, 0}, 0, true, "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	backend.mu.Lock()
	idx := backend.byID[rec.ID]
	backend.records[idx].Output = [2]float64{999, 0}
	backend.mu.Unlock()

	result, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if result.OK {
		t.Errorf("expected tampering to be detected")
	}
}

func TestVerifyIntegrityWithSignerAndKeyPasses(t *testing.T) {
	signer, err := signing.GenerateLocal()
	if err != nil {
		t.Fatalf("GenerateLocal: %v", err)
	}

	l, err := New(NewMemoryBackend(), WithSigner(signer), WithVerificationKey(signer.PublicKey()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := l.Append("add", nil, [2]float64{1, 0}, 0, true, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	result, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if !result.OK {
		t.Errorf("expected OK, got failure: %s", result.FailureReason)
	}
	if result.SignaturesUnverified {
		t.Errorf("expected signatures to have been verified")
	}
}

func TestVerifyIntegrityWithWrongKeyFails(t *testing.T) {
	signer, err := signing.GenerateLocal()
	if err != nil {
		t.Fatalf("GenerateLocal: %v", err)
	}
	other, err := signing.GenerateLocal()
	if err != nil {
		t.Fatalf("GenerateLocal: %v", err)
	}

	l, err := New(NewMemoryBackend(), WithSigner(signer), WithVerificationKey(other.PublicKey()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := l.Append("add", nil, [2]float64{1, 0}, 0, true, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	result, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if result.OK {
		t.Errorf("expected signature mismatch to fail verification")
	}
}

func TestTraceWalksParentChainInOrder(t *testing.T) {
	l, err := New(NewMemoryBackend())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root, err := l.Append("add", nil, [2]float64{1, 0}, 0, true, "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	mid, err := l.Append("multiply", nil, [2]float64{2, 0}, 0, true, root.ID)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	leaf, err := l.Append("compose", nil, [2]float64{3, 0}, 0, true, mid.ID)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	chain, err := l.Trace(leaf.ID)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if chain[0].ID != root.ID || chain[1].ID != mid.ID || chain[2].ID != leaf.ID {
		t.Errorf("chain out of order: %+v", chain)
	}
}

func TestRootChangesOnEachAppend(t *testing.T) {
	l, err := New(NewMemoryBackend())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r0 := l.Root()
	if _, err := l.Append("add", nil, [2]float64{1, 0}, 0, true, ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	r1 := l.Root()
	if r0 == r1 {
		t.Errorf("root did not change after append")
	}
}

func TestReopenLedgerReplaysSequenceAndRoot(t *testing.T) {
	backend := NewMemoryBackend()
	l1, err := New(backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := l1.Append("add", nil, [2]float64{float64(i), 0}, 0, true, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	want := l1.Root()

	l2, err := New(backend)
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	if got := l2.Root(); got != want {
		t.Errorf("reopened root = %x, want %x", got, want)
	}
	rec, err := l2.Append("add", nil, [2]float64{99, 0}, 0, true, "")
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if rec.Sequence != 5 {
		t.Errorf("sequence after reopen = %d, want 5", rec.Sequence)
	}
}
