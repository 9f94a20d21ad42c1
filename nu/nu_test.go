package nu

import (
	"math"
	"testing"

	"github.com/oarkflow/aegis/errs"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAddSeedVector(t *testing.T) {
	out, err := Add(Pair{N: 10.0, U: 0.5}, Pair{N: 20.0, U: 1.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(out.N, 30.0, 1e-9) {
		t.Errorf("N = %v, want 30.0", out.N)
	}
	wantU := math.Sqrt(1.25)
	if !almostEqual(out.U, wantU, 1e-9) {
		t.Errorf("U = %v, want %v", out.U, wantU)
	}
	cov := Coverage(out)
	if !almostEqual(cov, wantU/30.0, 1e-9) {
		t.Errorf("Coverage = %v, want %v", cov, wantU/30.0)
	}
}

func TestMultiplySeedVector(t *testing.T) {
	out, err := Multiply(Pair{N: 10.0, U: 0.5}, Pair{N: 20.0, U: 1.0}, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(out.N, 200.0, 1e-9) {
		t.Errorf("N = %v, want 200.0", out.N)
	}
	wantU := math.Sqrt(200.25)
	if !almostEqual(out.U, wantU, 1e-9) {
		t.Errorf("U = %v, want %v", out.U, wantU)
	}
}

func TestMultiplyRejectsSubUnityMargin(t *testing.T) {
	if _, err := Multiply(Pair{N: 1, U: 1}, Pair{N: 1, U: 1}, 0.5); !errs.Is(err, errs.InvariantViolated) {
		t.Fatalf("expected InvariantViolated, got %v", err)
	}
}

func TestComposeSeedVector(t *testing.T) {
	out, err := Compose(Pair{N: 100.0, U: 5.0}, Pair{N: 100.0, U: 3.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantU := math.Sqrt((25.0 * 9.0) / 34.0)
	if !almostEqual(out.U, wantU, 1e-9) {
		t.Errorf("U = %v, want %v", out.U, wantU)
	}
	if out.U >= 5.0 || out.U >= 3.0 {
		t.Errorf("compose did not reduce uncertainty: %v", out.U)
	}
}

func TestComposeBothCertainAverages(t *testing.T) {
	out, err := Compose(Pair{N: 10, U: 0}, Pair{N: 20, U: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.N != 15 || out.U != 0 {
		t.Errorf("got %+v, want {15 0}", out)
	}
}

func TestComposeOneCertainReturnsCertain(t *testing.T) {
	out, err := Compose(Pair{N: 10, U: 0}, Pair{N: 20, U: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.N != 10 || out.U != 0 {
		t.Errorf("got %+v, want {10 0}", out)
	}
}

func TestCatchValidPairPassesThrough(t *testing.T) {
	out := Catch(Pair{N: 5, U: 2}, 0)
	if out.N != 5 || out.U != 2 {
		t.Errorf("got %+v, want {5 2}", out)
	}
}

func TestCatchNaNCollapses(t *testing.T) {
	out := Catch(Pair{N: math.NaN(), U: 1.0}, 0.0)
	if out.N != 0.0 || !math.IsInf(out.U, 1) {
		t.Errorf("got %+v, want {0 +Inf}", out)
	}
}

func TestCatchNegativeUncertaintyCollapses(t *testing.T) {
	out := Catch(Pair{N: 1, U: -1}, -9)
	if out.N != -9 || !math.IsInf(out.U, 1) {
		t.Errorf("got %+v, want {-9 +Inf}", out)
	}
}

func TestCatchInfiniteNominalCollapses(t *testing.T) {
	out := Catch(Pair{N: math.Inf(1), U: 1}, 0)
	if !math.IsInf(out.U, 1) {
		t.Errorf("got %+v, want infinite U", out)
	}
}

func TestFlipInvolutive(t *testing.T) {
	p := Pair{N: 7.5, U: 0.5}
	once, err := Flip(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Flip(once)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if twice != p {
		t.Errorf("got %+v, want %+v", twice, p)
	}
}

func TestAddCommutativeAndAssociative(t *testing.T) {
	a := Pair{N: 1.1, U: 0.2}
	b := Pair{N: -3.4, U: 0.7}
	c := Pair{N: 9.9, U: 0.05}

	ab, _ := Add(a, b)
	ba, _ := Add(b, a)
	if !almostEqual(ab.N, ba.N, 1e-10) || !almostEqual(ab.U, ba.U, 1e-10) {
		t.Errorf("Add not commutative: %+v vs %+v", ab, ba)
	}

	abc1, _ := Add(ab, c)
	bc, _ := Add(b, c)
	abc2, _ := Add(a, bc)
	if !almostEqual(abc1.N, abc2.N, 1e-10) || !almostEqual(abc1.U, abc2.U, 1e-10) {
		t.Errorf("Add not associative: %+v vs %+v", abc1, abc2)
	}
}

func TestCoverageZeroNominal(t *testing.T) {
	if c := Coverage(Pair{N: 0, U: 0}); c != 0 {
		t.Errorf("got %v, want 0", c)
	}
	if c := Coverage(Pair{N: 0, U: 1}); !math.IsInf(c, 1) {
		t.Errorf("got %v, want +Inf", c)
	}
}
