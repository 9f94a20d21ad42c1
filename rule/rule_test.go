package rule

import (
	"math"
	"testing"

	"github.com/oarkflow/aegis/nu"
)

func TestInvariantFlagsNegativeUncertainty(t *testing.T) {
	event := Invariant{}.Check("add", nil, nu.Pair{N: 1, U: -1})
	if event == nil || event.Level != Critical {
		t.Fatalf("expected Critical event, got %+v", event)
	}
}

func TestInvariantFlagsNaN(t *testing.T) {
	event := Invariant{}.Check("add", nil, nu.Pair{N: math.NaN(), U: 1})
	if event == nil || event.Level != Critical {
		t.Fatalf("expected Critical event, got %+v", event)
	}
}

func TestInvariantFlagsInfiniteNominal(t *testing.T) {
	event := Invariant{}.Check("add", nil, nu.Pair{N: math.Inf(1), U: 1})
	if event == nil || event.Level != Critical {
		t.Fatalf("expected Critical event, got %+v", event)
	}
}

func TestInvariantPassesOnValidPair(t *testing.T) {
	if event := (Invariant{}).Check("add", nil, nu.Pair{N: 10, U: 1}); event != nil {
		t.Errorf("expected no event, got %+v", event)
	}
}

func TestCoverageTriggersOverThreshold(t *testing.T) {
	rule := Coverage{Threshold: 0.1, Level: Warning}
	event := rule.Check("add", nil, nu.Pair{N: 100, U: 15})
	if event == nil || event.Level != Warning {
		t.Fatalf("expected Warning event, got %+v", event)
	}
}

func TestCoveragePassesUnderThreshold(t *testing.T) {
	rule := Coverage{Threshold: 0.2, Level: Warning}
	if event := rule.Check("add", nil, nu.Pair{N: 100, U: 5}); event != nil {
		t.Errorf("expected no event, got %+v", event)
	}
}

func TestThresholdTriggersOverMax(t *testing.T) {
	rule := Threshold{Max: 10, Level: Error}
	event := rule.Check("add", nil, nu.Pair{N: 100, U: 15})
	if event == nil || event.Level != Error {
		t.Fatalf("expected Error event, got %+v", event)
	}
}

func TestCompositeAnyReturnsFirstViolation(t *testing.T) {
	composite := Composite{
		Mode: Any,
		Rules: []Rule{
			Coverage{Threshold: 1000, Level: Warning},
			Threshold{Max: 1, Level: Error},
		},
	}
	event := composite.Check("add", nil, nu.Pair{N: 10, U: 5})
	if event == nil || event.Level != Error {
		t.Fatalf("expected Error event from Threshold rule, got %+v", event)
	}
}

func TestCompositeAllRequiresEveryMember(t *testing.T) {
	composite := Composite{
		Mode: All,
		Rules: []Rule{
			Coverage{Threshold: 0.01, Level: Warning},
			Threshold{Max: 1, Level: Error},
		},
	}
	event := composite.Check("add", nil, nu.Pair{N: 10, U: 5})
	if event == nil {
		t.Fatalf("expected combined violation event")
	}
	if event.Level != Error {
		t.Errorf("expected combined event to take the higher severity, got %v", event.Level)
	}
}

func TestCompositeAllPassesIfAnyMemberPasses(t *testing.T) {
	composite := Composite{
		Mode: All,
		Rules: []Rule{
			Coverage{Threshold: 1000, Level: Warning},
			Threshold{Max: 1, Level: Error},
		},
	}
	if event := composite.Check("add", nil, nu.Pair{N: 10, U: 5}); event != nil {
		t.Errorf("expected no event since coverage rule passed, got %+v", event)
	}
}

func TestCustomRuleDelegatesToFunction(t *testing.T) {
	called := false
	custom := Custom{
		RuleName: "LargeValue",
		CheckFn: func(operation string, inputs []nu.Pair, output nu.Pair) *Event {
			called = true
			if output.N > 1000 {
				return &Event{Level: Info, Operation: operation, Message: "large value"}
			}
			return nil
		},
	}
	if event := custom.Check("add", nil, nu.Pair{N: 2000, U: 0}); event == nil {
		t.Errorf("expected event for large value")
	}
	if !called {
		t.Errorf("custom check function was not invoked")
	}
}
