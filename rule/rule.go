// Package rule defines the closed set of violation-detection rules the
// monitor evaluates against N/U operations: invariant checks, coverage
// thresholds, absolute-uncertainty thresholds, boolean composites of other
// rules, and caller-supplied custom predicates.
package rule

import (
	"fmt"
	"math"

	"github.com/oarkflow/aegis/nu"
)

// Level is an event severity, ordered from least to most severe.
type Level int

const (
	Info Level = iota
	Warning
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is a detected violation or notable condition.
type Event struct {
	Level     Level
	Operation string
	Message   string
	Data      map[string]any
}

// Rule checks an operation's inputs and output, returning an Event if it
// finds a violation, or nil if the operation passes.
type Rule interface {
	Check(operation string, inputs []nu.Pair, output nu.Pair) *Event
	Name() string
}

// Invariant flags the three conditions an N/U pair must never exhibit:
// negative uncertainty, NaN components, or an infinite nominal. These
// should never occur in a correct nu computation, so a hit is always
// Critical.
type Invariant struct{}

func (Invariant) Check(operation string, inputs []nu.Pair, output nu.Pair) *Event {
	switch {
	case output.U < 0:
		return &Event{
			Level: Critical, Operation: operation,
			Message: fmt.Sprintf("invariant violation: negative uncertainty u=%v", output.U),
			Data:    map[string]any{"violation": "negative_uncertainty", "output": output},
		}
	case math.IsNaN(output.N) || math.IsNaN(output.U):
		return &Event{
			Level: Critical, Operation: operation,
			Message: "invariant violation: NaN detected",
			Data:    map[string]any{"violation": "nan", "output": output},
		}
	case math.IsInf(output.N, 0):
		return &Event{
			Level: Critical, Operation: operation,
			Message: "invariant violation: infinite nominal value",
			Data:    map[string]any{"violation": "infinite_nominal", "output": output},
		}
	}
	return nil
}

func (Invariant) Name() string { return "Invariant" }

// Coverage flags operations whose output coverage ratio (u/|n|) exceeds
// Threshold.
type Coverage struct {
	Threshold float64
	Level     Level
}

func (c Coverage) Check(operation string, inputs []nu.Pair, output nu.Pair) *Event {
	coverage := nu.Coverage(output)
	if coverage > c.Threshold {
		return &Event{
			Level: c.Level, Operation: operation,
			Message: fmt.Sprintf("coverage %.4f exceeds threshold %.4f", coverage, c.Threshold),
			Data:    map[string]any{"coverage": coverage, "threshold": c.Threshold, "output": output},
		}
	}
	return nil
}

func (c Coverage) Name() string { return fmt.Sprintf("Coverage(threshold=%v)", c.Threshold) }

// Threshold flags operations whose absolute output uncertainty exceeds Max,
// independent of the nominal value's magnitude.
type Threshold struct {
	Max   float64
	Level Level
}

func (t Threshold) Check(operation string, inputs []nu.Pair, output nu.Pair) *Event {
	if output.U > t.Max {
		return &Event{
			Level: t.Level, Operation: operation,
			Message: fmt.Sprintf("uncertainty %.4f exceeds threshold %.4f", output.U, t.Max),
			Data:    map[string]any{"uncertainty": output.U, "threshold": t.Max, "output": output},
		}
	}
	return nil
}

func (t Threshold) Name() string { return fmt.Sprintf("Threshold(max=%v)", t.Max) }

// CompositeMode selects how Composite folds its member rules' results.
type CompositeMode int

const (
	// Any fires on the first violating member rule (OR semantics).
	Any CompositeMode = iota
	// All fires only when every member rule violates (AND semantics).
	All
)

// Composite combines Rules with Mode's boolean semantics.
type Composite struct {
	Rules []Rule
	Mode  CompositeMode
}

func (c Composite) Check(operation string, inputs []nu.Pair, output nu.Pair) *Event {
	var events []*Event
	for _, r := range c.Rules {
		if e := r.Check(operation, inputs, output); e != nil {
			events = append(events, e)
			if c.Mode == Any {
				return e
			}
		}
	}
	if c.Mode == All && len(events) == len(c.Rules) && len(events) > 0 {
		maxLevel := events[0].Level
		messages := events[0].Message
		for _, e := range events[1:] {
			if e.Level > maxLevel {
				maxLevel = e.Level
			}
			messages += "; " + e.Message
		}
		return &Event{
			Level: maxLevel, Operation: operation,
			Message: "multiple violations: " + messages,
			Data:    map[string]any{"violations": events},
		}
	}
	return nil
}

func (c Composite) Name() string {
	names := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		names[i] = r.Name()
	}
	mode := "any"
	if c.Mode == All {
		mode = "all"
	}
	return fmt.Sprintf("Composite(%s: %v)", mode, names)
}

// Custom wraps a caller-supplied check function, for ad hoc rules that do
// not warrant a dedicated type.
type Custom struct {
	RuleName string
	CheckFn  func(operation string, inputs []nu.Pair, output nu.Pair) *Event
}

func (c Custom) Check(operation string, inputs []nu.Pair, output nu.Pair) *Event {
	return c.CheckFn(operation, inputs, output)
}

func (c Custom) Name() string { return c.RuleName }
