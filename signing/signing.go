// Package signing provides pluggable Ed25519 signing backends for the
// ledger and policy packages: a local in-process signer, an HSM-backed
// signer over PKCS#11, and a Shamir secret-sharing ceremony for splitting
// and reassembling a signing seed among custodians.
package signing

import (
	"crypto/ed25519"

	"github.com/oarkflow/aegis/errs"
)

// Provider signs digests with an Ed25519 key and exposes the matching
// public key for verification.
type Provider interface {
	Sign(digest []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// Local signs in-process with an Ed25519 private key held in memory.
type Local struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewLocal wraps an existing Ed25519 private key.
func NewLocal(priv ed25519.PrivateKey) *Local {
	return &Local{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// GenerateLocal creates a fresh ephemeral Ed25519 keypair, for development
// and tests where no durable key custody is required.
func GenerateLocal() (*Local, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errs.Wrap(errs.NoSigningKey, "generate ephemeral keypair", err)
	}
	return &Local{priv: priv, pub: pub}, nil
}

func (l *Local) Sign(digest []byte) ([]byte, error) {
	if l == nil || l.priv == nil {
		return nil, errs.New(errs.NoSigningKey, "no local signing key configured")
	}
	return ed25519.Sign(l.priv, digest), nil
}

func (l *Local) PublicKey() ed25519.PublicKey {
	if l == nil {
		return nil
	}
	return l.pub
}

// PrivateKey exposes the raw Ed25519 private key, for callers (like JWT
// libraries) that need to sign directly rather than through Provider.Sign.
func (l *Local) PrivateKey() ed25519.PrivateKey {
	if l == nil {
		return nil
	}
	return l.priv
}
