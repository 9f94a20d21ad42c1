package policy

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oarkflow/aegis/errs"
)

// wireForm is the on-disk JSON shape of a Policy.
type wireForm struct {
	Config     Config `json:"config"`
	Signature  string `json:"signature,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	PolicyHash string `json:"policy_hash"`
}

func toWireForm(p Policy) wireForm {
	w := wireForm{Config: p.Config, PolicyHash: p.HashHex()}
	if p.Signature != nil {
		w.Signature = base64.StdEncoding.EncodeToString(p.Signature)
	}
	if p.PublicKey != nil {
		w.PublicKey = base64.StdEncoding.EncodeToString(p.PublicKey)
	}
	return w
}

func fromWireForm(w wireForm) (Policy, error) {
	p, err := NewPolicy(w.Config)
	if err != nil {
		return Policy{}, err
	}
	if w.Signature != "" {
		sig, err := base64.StdEncoding.DecodeString(w.Signature)
		if err != nil {
			return Policy{}, errs.Wrap(errs.PolicyMalformed, "decode signature", err)
		}
		p.Signature = sig
	}
	if w.PublicKey != "" {
		pub, err := base64.StdEncoding.DecodeString(w.PublicKey)
		if err != nil {
			return Policy{}, errs.Wrap(errs.PolicyMalformed, "decode public key", err)
		}
		p.PublicKey = pub
	}
	return p, nil
}

// HistoryEntry summarizes one policy that has passed through the manager,
// for audit and comparison purposes.
type HistoryEntry struct {
	Version string
	Name    string
	Hash    string
}

// Manager manages a directory of named JSON policy files, tracking the
// current policy and the full in-process history of policies it has
// loaded or created during this run.
type Manager struct {
	mu      sync.Mutex
	dir     string
	current *Policy
	history []Policy
}

// NewManager opens (creating if necessary) a policy directory.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "create policy directory", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".json")
}

// Load reads the named policy from disk. When requireSignature is true, an
// unsigned or invalidly-signed policy is rejected.
func (m *Manager) Load(name string, requireSignature bool) (Policy, error) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		return Policy{}, errs.Wrap(errs.BackendFailure, "read policy file", err)
	}

	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return Policy{}, errs.Wrap(errs.PolicyMalformed, "unmarshal policy file", err)
	}
	p, err := fromWireForm(w)
	if err != nil {
		return Policy{}, err
	}

	if requireSignature && !p.VerifySignature() {
		return Policy{}, errs.New(errs.SignatureInvalid, "policy signature verification failed: "+name)
	}

	m.mu.Lock()
	m.current = &p
	m.history = append(m.history, p)
	m.mu.Unlock()
	return p, nil
}

// Save writes policy to disk under name.
func (m *Manager) Save(p Policy, name string) (string, error) {
	data, err := json.MarshalIndent(toWireForm(p), "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.PolicyMalformed, "marshal policy", err)
	}
	path := m.path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errs.Wrap(errs.BackendFailure, "write policy file", err)
	}
	return path, nil
}

// Create builds a fresh unsigned Policy, sets it as current, and records
// it in history.
func (m *Manager) Create(name, description string, rules []RuleSpec, escalation Escalation, metadata map[string]any) (Policy, error) {
	config := Config{
		Version:     "1.0.0",
		Name:        name,
		Description: description,
		Rules:       rules,
		Escalation:  escalation,
		Metadata:    metadata,
	}
	p, err := NewPolicy(config)
	if err != nil {
		return Policy{}, err
	}

	m.mu.Lock()
	m.current = &p
	m.history = append(m.history, p)
	m.mu.Unlock()
	return p, nil
}

// List returns the names of all policy files in the managed directory.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.Wrap(errs.BackendFailure, "list policy directory", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// History returns a summary of every policy loaded or created through
// this manager, oldest first.
func (m *Manager) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	for i, p := range m.history {
		out[i] = HistoryEntry{Version: p.Config.Version, Name: p.Config.Name, Hash: p.HashHex()}
	}
	return out
}

// Current returns the most recently loaded or created policy, if any.
func (m *Manager) Current() (Policy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Policy{}, false
	}
	return *m.current, true
}
