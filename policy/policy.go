// Package policy implements policy-as-code for the monitor: a versioned,
// JSON-serializable configuration is hashed and Ed25519-signed into a
// Policy, validated, compiled into a monitor.Config, and managed with a
// load/save/history lifecycle.
package policy

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/aegis/canon"
	"github.com/oarkflow/aegis/errs"
)

// RuleSpec is the JSON-serializable form of a rule.Rule. Type selects
// which rule.Rule it compiles to; the other fields are interpreted
// according to Type.
type RuleSpec struct {
	Type      string     `json:"type"`
	Threshold float64    `json:"threshold,omitempty"`
	Max       float64    `json:"max,omitempty"`
	Level     string     `json:"level,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	Rules     []RuleSpec `json:"rules,omitempty"`
}

// Escalation mirrors monitor.Config's escalation-related fields. It tracks
// any unrecognized keys it was unmarshaled from so the validator can warn
// about them rather than silently dropping them.
type Escalation struct {
	AutoLog        bool `json:"auto_log"`
	HaltOnCritical bool `json:"halt_on_critical"`

	extraKeys []string
}

var knownEscalationJSONKeys = map[string]bool{
	"auto_log": true, "halt_on_critical": true,
}

// UnmarshalJSON decodes the known escalation fields and records any other
// top-level key present in the document.
func (e *Escalation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["auto_log"]; ok {
		if err := json.Unmarshal(v, &e.AutoLog); err != nil {
			return err
		}
	}
	if v, ok := raw["halt_on_critical"]; ok {
		if err := json.Unmarshal(v, &e.HaltOnCritical); err != nil {
			return err
		}
	}
	e.extraKeys = nil
	for key := range raw {
		if !knownEscalationJSONKeys[key] {
			e.extraKeys = append(e.extraKeys, key)
		}
	}
	return nil
}

// unknownKeys returns every key this Escalation was unmarshaled with that
// isn't one of the known escalation fields.
func (e Escalation) unknownKeys() []string {
	return e.extraKeys
}

// Config is a versioned, named policy definition: a set of rules plus
// escalation behavior and free-form metadata.
type Config struct {
	Version     string         `json:"version"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Rules       []RuleSpec     `json:"rules"`
	Escalation  Escalation     `json:"escalation"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (c Config) hashableValue() map[string]any {
	rules := make([]any, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = ruleSpecValue(r)
	}
	metadata := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	return map[string]any{
		"version":     c.Version,
		"name":        c.Name,
		"description": c.Description,
		"rules":       rules,
		"escalation": map[string]any{
			"auto_log":         c.Escalation.AutoLog,
			"halt_on_critical": c.Escalation.HaltOnCritical,
		},
		"metadata": metadataOrNull(metadata),
	}
}

func metadataOrNull(m map[string]any) any {
	if len(m) == 0 {
		return map[string]any{}
	}
	return m
}

func ruleSpecValue(r RuleSpec) map[string]any {
	var nested []any
	if len(r.Rules) > 0 {
		nested = make([]any, len(r.Rules))
		for i, sub := range r.Rules {
			nested[i] = ruleSpecValue(sub)
		}
	}
	return map[string]any{
		"type":      r.Type,
		"threshold": r.Threshold,
		"max":       r.Max,
		"level":     r.Level,
		"mode":      r.Mode,
		"rules":     nestedOrNull(nested),
	}
}

func nestedOrNull(v []any) any {
	if v == nil {
		return []any{}
	}
	return v
}

// Hash returns the SHA-256 hash of the config's canonical form.
func (c Config) Hash() ([32]byte, error) {
	encoded, err := canon.Marshal(c.hashableValue())
	if err != nil {
		return [32]byte{}, errs.Wrap(errs.PolicyMalformed, "canonicalize policy config", err)
	}
	return sha256Sum(encoded), nil
}

// Policy is a Config bundled with its content hash and, optionally, an
// Ed25519 signature and the public key that verifies it.
type Policy struct {
	Config    Config
	Hash      [32]byte
	Signature []byte
	PublicKey ed25519.PublicKey
}

// NewPolicy computes config's hash and wraps it into an unsigned Policy.
func NewPolicy(config Config) (Policy, error) {
	hash, err := config.Hash()
	if err != nil {
		return Policy{}, err
	}
	return Policy{Config: config, Hash: hash}, nil
}

// Sign signs the policy hash with signer and attaches signer's public key.
func (p *Policy) Sign(signer interface {
	Sign([]byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}) error {
	sig, err := signer.Sign(p.Hash[:])
	if err != nil {
		return errs.Wrap(errs.SignatureInvalid, "sign policy", err)
	}
	p.Signature = sig
	p.PublicKey = signer.PublicKey()
	return nil
}

// VerifySignature reports whether the policy's signature is valid over its
// hash under its embedded public key. It returns false (not an error) when
// either is absent, so callers can distinguish "unsigned" from "tampered"
// by checking p.Signature first.
func (p Policy) VerifySignature() bool {
	if p.Signature == nil || p.PublicKey == nil {
		return false
	}
	return ed25519.Verify(p.PublicKey, p.Hash[:], p.Signature)
}

// HashHex renders the policy hash as lowercase hex, the form used in
// exports and the policy history log.
func (p Policy) HashHex() string {
	return hex.EncodeToString(p.Hash[:])
}

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

func verifyHashMatchesConfig(p Policy) error {
	recomputed, err := p.Config.Hash()
	if err != nil {
		return err
	}
	if recomputed != p.Hash {
		return errs.New(errs.PolicyMalformed, fmt.Sprintf("policy hash mismatch: embedded %x, recomputed %x", p.Hash, recomputed))
	}
	return nil
}
