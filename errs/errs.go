// Package errs defines the error-kind taxonomy shared across the kernel.
//
// Every fallible operation in nu, merkle, ledger, rule, monitor, signing and
// policy returns an error that wraps one of these kinds, so callers branch
// with errors.Is/errors.As instead of matching message strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure, independent of the message text.
type Kind string

const (
	InvariantViolated     Kind = "invariant_violated"
	MerkleIndexOutOfRange Kind = "merkle_index_out_of_range"
	LedgerInconsistent    Kind = "ledger_inconsistent"
	SignatureInvalid      Kind = "signature_invalid"
	NoSigningKey          Kind = "no_signing_key"
	PolicyMalformed       Kind = "policy_malformed"
	UnknownRuleType       Kind = "unknown_rule_type"
	CriticalHalt          Kind = "critical_halt"
	BackendFailure        Kind = "backend_failure"
)

// Error is the single error type used across the kernel. Kind carries the
// stable category; Cause carries an optional wrapped error from a
// collaborator (a backend, a signing provider).
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error that carries an underlying collaborator error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
