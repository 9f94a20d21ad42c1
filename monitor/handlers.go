package monitor

import (
	"fmt"
	"sync"

	"github.com/oarkflow/aegis/rule"
)

// LogHandler prints every event it's given, via a caller-supplied sink
// (defaults to fmt.Println when Sink is nil) so tests and embedders can
// redirect output without touching stdout.
type LogHandler struct {
	Sink func(string)
}

func (h LogHandler) Handle(event rule.Event) error {
	line := fmt.Sprintf("[%s] %s: %s", event.Level, event.Operation, event.Message)
	if h.Sink != nil {
		h.Sink(line)
	} else {
		fmt.Println(line)
	}
	return nil
}

func (h LogHandler) ShouldHandle(event rule.Event) bool { return true }

// Aggregator collects events for later inspection, filterable by level.
type Aggregator struct {
	mu     sync.Mutex
	events []rule.Event
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Handle(event rule.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *Aggregator) ShouldHandle(event rule.Event) bool { return true }

// Events returns all collected events, or only those at level when
// filterLevel is non-nil.
func (a *Aggregator) Events(filterLevel *rule.Level) []rule.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if filterLevel == nil {
		out := make([]rule.Event, len(a.events))
		copy(out, a.events)
		return out
	}
	var out []rule.Event
	for _, e := range a.events {
		if e.Level == *filterLevel {
			out = append(out, e)
		}
	}
	return out
}

// Clear discards all collected events.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = nil
}

// Count returns the number of collected events, or the number at level
// when filterLevel is non-nil.
func (a *Aggregator) Count(filterLevel *rule.Level) int {
	return len(a.Events(filterLevel))
}

// Conditional wraps another handler, deferring to a predicate to decide
// whether it should run.
type Conditional struct {
	Handler   Handler
	Condition func(rule.Event) bool
}

func (c Conditional) Handle(event rule.Event) error {
	return c.Handler.Handle(event)
}

func (c Conditional) ShouldHandle(event rule.Event) bool {
	return c.Condition(event)
}

// Halt only accepts Critical events, and returns an error when it
// processes one — paired with Config.HaltOnCritical, or used standalone by
// a caller that checks the returned error itself.
type Halt struct{}

func (Halt) Handle(event rule.Event) error {
	return fmt.Errorf("critical event: %s (operation %s)", event.Message, event.Operation)
}

func (Halt) ShouldHandle(event rule.Event) bool {
	return event.Level == rule.Critical
}
