// Package nu implements the nominal/uncertainty algebra kernel: pure,
// total-on-valid-input functions over (n, u) pairs that preserve an
// enclosure interval and run in O(1) time.
package nu

import (
	"math"

	"github.com/oarkflow/aegis/errs"
)

// Pair is a nominal/uncertainty value representing the interval
// [N-U, N+U]. It is immutable once returned from an operation.
type Pair struct {
	N float64
	U float64
}

// Validate checks the invariants every Pair leaving this package must hold:
// U non-negative, N finite, and U either finite or +Inf (the epistemic
// collapse sentinel returned by Catch).
func Validate(p Pair) error {
	if p.U < 0 {
		return errs.New(errs.InvariantViolated, "negative uncertainty")
	}
	if math.IsNaN(p.N) || math.IsNaN(p.U) {
		return errs.New(errs.InvariantViolated, "NaN component")
	}
	if math.IsInf(p.N, 0) {
		return errs.New(errs.InvariantViolated, "infinite nominal")
	}
	return nil
}

// Coverage returns the coverage ratio u/|n|: +Inf when n is zero and u is
// positive, 0 when both are zero, and u/|n| otherwise.
func Coverage(p Pair) float64 {
	if p.N == 0 {
		if p.U > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return p.U / math.Abs(p.N)
}

// Add computes (n1±u1) + (n2±u2) = (n1+n2) ± sqrt(u1²+u2²). The quadrature
// sum preserves non-negativity and is commutative and associative up to
// floating-point reordering.
func Add(a, b Pair) (Pair, error) {
	if a.U < 0 || b.U < 0 {
		return Pair{}, errs.New(errs.InvariantViolated, "negative input uncertainty")
	}
	out := Pair{N: a.N + b.N, U: math.Sqrt(a.U*a.U + b.U*b.U)}
	return out, Validate(out)
}

// Multiply computes (n1±u1) * (n2±u2) with margin lambda (>= 1), including
// the conservative cross term (u1*u2)^2 so the result interval contains the
// image of the input box under multiplication.
func Multiply(a, b Pair, lambda float64) (Pair, error) {
	if a.U < 0 || b.U < 0 {
		return Pair{}, errs.New(errs.InvariantViolated, "negative input uncertainty")
	}
	if lambda < 1 {
		return Pair{}, errs.New(errs.InvariantViolated, "margin lambda must be >= 1")
	}
	term1 := a.N * b.U
	term2 := b.N * a.U
	term3 := a.U * b.U
	out := Pair{
		N: a.N * b.N,
		U: lambda * math.Sqrt(term1*term1+term2*term2+term3*term3),
	}
	return out, Validate(out)
}

// Compose reduces uncertainty through informational composition. Zero
// uncertainty on either side yields the certain value (or the mean of both
// nominals when both sides are certain); otherwise the result is the
// uncertainty-weighted average of the nominals with uncertainty
// u1*u2/sqrt(u1²+u2²), which never exceeds either input.
func Compose(a, b Pair) (Pair, error) {
	if a.U < 0 || b.U < 0 {
		return Pair{}, errs.New(errs.InvariantViolated, "negative input uncertainty")
	}

	switch {
	case a.U == 0 && b.U == 0:
		out := Pair{N: (a.N + b.N) / 2, U: 0}
		return out, Validate(out)
	case a.U == 0:
		return Pair{N: a.N, U: 0}, nil
	case b.U == 0:
		return Pair{N: b.N, U: 0}, nil
	}

	aSq, bSq := a.U*a.U, b.U*b.U
	denom := aSq + bSq
	out := Pair{
		N: (a.N*bSq + b.N*aSq) / denom,
		U: math.Sqrt((aSq * bSq) / denom),
	}
	if err := Validate(out); err != nil {
		return Pair{}, err
	}
	const slack = 1e-10
	if out.U > a.U+slack || out.U > b.U+slack {
		return Pair{}, errs.New(errs.InvariantViolated, "composition failed to reduce uncertainty")
	}
	return out, nil
}

// Catch returns p unchanged if it is well-formed (finite n, non-negative
// finite u, no NaN); otherwise it returns (defaultN, +Inf) — the canonical
// epistemic-collapse signal. Catch never returns an error: failure is
// reported in-band by infinite uncertainty, never hidden.
func Catch(p Pair, defaultN float64) Pair {
	if math.IsNaN(p.N) || math.IsNaN(p.U) || math.IsInf(p.N, 0) || math.IsInf(p.U, 0) || p.U < 0 {
		return Pair{N: defaultN, U: math.Inf(1)}
	}
	return p
}

// Flip negates the nominal while preserving uncertainty. Involutive:
// Flip(Flip(p)) == p.
func Flip(p Pair) (Pair, error) {
	if p.U < 0 {
		return Pair{}, errs.New(errs.InvariantViolated, "negative uncertainty")
	}
	return Pair{N: -p.N, U: p.U}, nil
}
