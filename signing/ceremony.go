package signing

import (
	"crypto/ed25519"

	"github.com/oarkflow/shamir"

	"github.com/oarkflow/aegis/errs"
)

// Ceremony splits an Ed25519 seed among custodians with Shamir secret
// sharing and reassembles it only when a threshold of shares is presented.
// It never signs with a reconstructed key directly; Combine returns a
// Local signer built from the recovered seed, so the caller controls the
// key's lifetime.
type Ceremony struct {
	threshold  int
	totalShare int
}

// NewCeremony configures a (threshold, totalShares) Shamir split.
func NewCeremony(threshold, totalShares int) (*Ceremony, error) {
	if threshold < 1 || totalShares < threshold {
		return nil, errs.New(errs.InvariantViolated, "threshold must be >= 1 and <= totalShares")
	}
	return &Ceremony{threshold: threshold, totalShare: totalShares}, nil
}

// Split generates a fresh Ed25519 seed and splits it into totalShares
// shares, threshold of which are required to reconstruct it. It returns the
// public key (safe to distribute immediately) and the shares (each must go
// to a distinct custodian).
func (c *Ceremony) Split() (ed25519.PublicKey, [][]byte, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.NoSigningKey, "generate ceremony keypair", err)
	}
	seed := priv.Seed()

	shares, err := shamir.Split(seed, c.threshold, c.totalShare)
	if err != nil {
		return nil, nil, errs.Wrap(errs.NoSigningKey, "split seed", err)
	}
	return pub, shares, nil
}

// Combine reconstructs the Ed25519 seed from at least threshold shares and
// returns a Local signer over it. Fewer than threshold shares are rejected
// with InvariantViolated before reconstruction is attempted; shares from an
// incompatible split fail the underlying Shamir reconstruction.
func (c *Ceremony) Combine(shares [][]byte) (*Local, error) {
	if len(shares) < c.threshold {
		return nil, errs.New(errs.InvariantViolated, "insufficient shares to meet threshold")
	}
	seed, err := shamir.Combine(shares)
	if err != nil {
		return nil, errs.Wrap(errs.NoSigningKey, "combine shares", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errs.New(errs.NoSigningKey, "reconstructed seed has wrong size")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return NewLocal(priv), nil
}
