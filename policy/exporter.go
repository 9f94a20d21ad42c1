package policy

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oarkflow/aegis/errs"
)

// Exporter renders a Policy into external interchange formats.
type Exporter struct{}

// JSON renders the policy's wire form with indentation.
func (Exporter) JSON(p Policy) ([]byte, error) {
	data, err := json.MarshalIndent(toWireForm(p), "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.PolicyMalformed, "export json", err)
	}
	return data, nil
}

// CompactJSON renders the policy's wire form with no indentation, for wire
// transmission.
func (Exporter) CompactJSON(p Policy) ([]byte, error) {
	data, err := json.Marshal(toWireForm(p))
	if err != nil {
		return nil, errs.Wrap(errs.PolicyMalformed, "export compact json", err)
	}
	return data, nil
}

// Summary is a human-oriented, non-round-trippable digest of a policy.
type Summary struct {
	Name      string
	Version   string
	RuleCount int
	Hash      string
	Signed    bool
	AutoLog   bool
	HaltCrit  bool
}

// Summary builds a Summary for p.
func (Exporter) Summary(p Policy) Summary {
	return Summary{
		Name:      p.Config.Name,
		Version:   p.Config.Version,
		RuleCount: len(p.Config.Rules),
		Hash:      p.HashHex(),
		Signed:    p.Signature != nil,
		AutoLog:   p.Config.Escalation.AutoLog,
		HaltCrit:  p.Config.Escalation.HaltOnCritical,
	}
}

// attestationClaims is the JWT payload attesting to a policy's identity
// and content hash, signed with the same Ed25519 key that signs the
// policy itself (EdDSA).
type attestationClaims struct {
	jwt.RegisteredClaims
	Name       string `json:"name"`
	Version    string `json:"version"`
	PolicyHash string `json:"policy_hash"`
}

// AttestationJWT issues a signed JWT (EdDSA) attesting that the holder's
// key vouches for this exact policy hash.
func (Exporter) AttestationJWT(p Policy, priv ed25519.PrivateKey) (string, error) {
	claims := attestationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Name:       p.Config.Name,
		Version:    p.Config.Version,
		PolicyHash: p.HashHex(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", errs.Wrap(errs.SignatureInvalid, "sign attestation jwt", err)
	}
	return signed, nil
}

// VerifyAttestationJWT parses and verifies tokenString against pub,
// returning the attested policy name and hash on success.
func (Exporter) VerifyAttestationJWT(tokenString string, pub ed25519.PublicKey) (name, hash string, err error) {
	token, parseErr := jwt.ParseWithClaims(tokenString, &attestationClaims{}, func(t *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if parseErr != nil {
		return "", "", errs.Wrap(errs.SignatureInvalid, "parse attestation jwt", parseErr)
	}
	claims, ok := token.Claims.(*attestationClaims)
	if !ok || !token.Valid {
		return "", "", errs.New(errs.SignatureInvalid, "invalid attestation jwt")
	}
	return claims.Name, claims.PolicyHash, nil
}
