package policy

import (
	"github.com/oarkflow/aegis/errs"
	"github.com/oarkflow/aegis/monitor"
	"github.com/oarkflow/aegis/rule"
)

// Compiler turns a validated Policy into a monitor.Config. Compile runs the
// Validator first, and the Validator rejects unrecognized rule types, so a
// policy containing one fails with PolicyMalformed whether or not Strict is
// set; unrecognized types are not dropped in either mode. Strict only
// changes compileRule, which then returns UnknownRuleType for an
// unrecognized type instead of skipping it.
type Compiler struct {
	Strict bool
}

// Compile validates policy.Config and, if valid, compiles its rules and
// escalation settings into a monitor.Config.
func (c Compiler) Compile(p Policy) (monitor.Config, error) {
	validation := (Validator{}).Validate(p.Config)
	if !validation.Valid {
		return monitor.Config{}, errs.New(errs.PolicyMalformed, "policy failed validation: "+validation.Errors[0])
	}

	rules := make([]rule.Rule, 0, len(p.Config.Rules))
	for _, spec := range p.Config.Rules {
		r, err := c.compileRule(spec)
		if err != nil {
			return monitor.Config{}, err
		}
		if r != nil {
			rules = append(rules, r)
		}
	}

	return monitor.Config{
		Rules:          rules,
		AutoLog:        p.Config.Escalation.AutoLog,
		HaltOnCritical: p.Config.Escalation.HaltOnCritical,
	}, nil
}

func (c Compiler) compileRule(spec RuleSpec) (rule.Rule, error) {
	level := compileLevel(spec.Level)

	switch spec.Type {
	case "invariant":
		return rule.Invariant{}, nil
	case "coverage":
		return rule.Coverage{Threshold: spec.Threshold, Level: level}, nil
	case "threshold":
		return rule.Threshold{Max: spec.Max, Level: level}, nil
	case "composite":
		mode := rule.Any
		if spec.Mode == "all" {
			mode = rule.All
		}
		members := make([]rule.Rule, 0, len(spec.Rules))
		for _, sub := range spec.Rules {
			m, err := c.compileRule(sub)
			if err != nil {
				return nil, err
			}
			if m != nil {
				members = append(members, m)
			}
		}
		return rule.Composite{Rules: members, Mode: mode}, nil
	default:
		if c.Strict {
			return nil, errs.New(errs.UnknownRuleType, "unknown rule type: "+spec.Type)
		}
		return nil, nil
	}
}

func compileLevel(s string) rule.Level {
	switch s {
	case "info":
		return rule.Info
	case "error":
		return rule.Error
	case "critical":
		return rule.Critical
	default:
		return rule.Warning
	}
}
