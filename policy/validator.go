package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/aegis/errs"
)

// ValidationResult reports every problem found with a policy, rather than
// stopping at the first one, so a caller can surface a complete report.
// Warnings flag things that don't invalidate the policy but are worth a
// human's attention (an unknown escalation key, an unsigned policy).
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidationError wraps a failing ValidationResult so ValidateAndRaise can
// be used as a guard clause ahead of compilation.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("policy validation failed:\n  - %s", strings.Join(e.Result.Errors, "\n  - "))
}

// Unwrap exposes the PolicyMalformed kind, so errs.Is matches a failed
// validation like any other kernel error.
func (e *ValidationError) Unwrap() error {
	return errs.New(errs.PolicyMalformed, "policy validation failed")
}

var knownRuleTypes = map[string]bool{
	"invariant": true,
	"coverage":  true,
	"threshold": true,
	"composite": true,
}

var knownLevels = map[string]bool{
	"": true, "info": true, "warning": true, "error": true, "critical": true,
}

// Validator checks a Config's structural validity and that the policy
// hash embedded in a Policy actually matches its config, before the
// config is ever compiled into a monitor.
type Validator struct{}

// Validate runs every structural check against config and returns a
// ValidationResult with every problem found.
func (Validator) Validate(config Config) ValidationResult {
	result := ValidationResult{Valid: true}

	if config.Version == "" {
		result.fail("version is required")
	} else if !isValidVersion(config.Version) {
		result.fail("invalid version format: %s (expected semantic versioning)", config.Version)
	}
	if config.Name == "" {
		result.fail("name is required")
	}
	if config.Description == "" {
		result.fail("description is required")
	}
	if len(config.Rules) == 0 {
		result.warn("no rules defined (policy will not detect violations)")
	}
	for i, r := range config.Rules {
		validateRuleSpec(&result, fmt.Sprintf("rules[%d]", i), r)
	}

	for _, key := range config.Escalation.unknownKeys() {
		result.warn("unknown escalation key: %s", key)
	}

	return result
}

// ValidatePolicy additionally checks that the Policy's embedded hash
// actually matches a fresh hash of its config, catching a config edited
// after hashing, and warns when the policy carries no signature.
func (v Validator) ValidatePolicy(p Policy) ValidationResult {
	result := v.Validate(p.Config)
	if err := verifyHashMatchesConfig(p); err != nil {
		result.fail("%s", err.Error())
	}
	if p.Signature == nil {
		result.warn("policy is not signed (signature verification disabled)")
	}
	return result
}

// ValidateAndRaise validates config and returns a *ValidationError when
// invalid, for callers that want a guard clause rather than a result to
// inspect manually.
func (v Validator) ValidateAndRaise(config Config) error {
	result := v.Validate(config)
	if !result.Valid {
		return &ValidationError{Result: result}
	}
	return nil
}

func isValidVersion(version string) bool {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}

func validateRuleSpec(result *ValidationResult, path string, r RuleSpec) {
	if !knownRuleTypes[r.Type] {
		result.fail("%s: unknown rule type %q", path, r.Type)
		return
	}
	if !knownLevels[r.Level] {
		result.fail("%s: unknown level %q", path, r.Level)
	}

	switch r.Type {
	case "coverage":
		if r.Threshold < 0 || r.Threshold > 1 {
			result.fail("%s: coverage threshold must be between 0 and 1", path)
		}
	case "threshold":
		if r.Max < 0 {
			result.fail("%s: threshold max must be non-negative", path)
		}
	case "composite":
		if r.Mode != "any" && r.Mode != "all" {
			result.fail("%s: composite mode must be \"any\" or \"all\"", path)
		}
		if len(r.Rules) == 0 {
			result.fail("%s: composite requires at least one nested rule", path)
		}
		for i, sub := range r.Rules {
			validateRuleSpec(result, fmt.Sprintf("%s.rules[%d]", path, i), sub)
		}
	}
}
