// Package monitor watches N/U operations in real time, checking them
// against a configured set of rules and fanning out detected events to
// registered handlers, with optional auto-logging to the ledger and
// optional halt-on-critical.
package monitor

import (
	"fmt"
	"os"
	"sync"

	"github.com/oarkflow/aegis/errs"
	"github.com/oarkflow/aegis/ledger"
	"github.com/oarkflow/aegis/nu"
	"github.com/oarkflow/aegis/rule"
)

// Handler processes events produced by rule checks.
type Handler interface {
	Handle(event rule.Event) error
	ShouldHandle(event rule.Event) bool
}

// Config configures a Monitor. An empty Rules list is replaced at
// construction time with the default pair (Invariant + 10% Coverage
// warning), mirroring the zero-config monitor a caller gets by default.
type Config struct {
	Rules          []rule.Rule
	Handlers       []Handler
	AutoLog        bool
	HaltOnCritical bool

	// ErrorSink receives one line per handler failure (returned error or
	// recovered panic). Defaults to writing to stderr when nil.
	ErrorSink func(string)
}

func defaultRules() []rule.Rule {
	return []rule.Rule{
		rule.Invariant{},
		rule.Coverage{Threshold: 0.1, Level: rule.Warning},
	}
}

// Monitor evaluates rules in order against each operation, stopping at the
// first violation, and dispatches that violation to handlers (and,
// optionally, to the ledger).
type Monitor struct {
	mu             sync.Mutex
	config         Config
	ledger         *ledger.Ledger
	eventCount     int
	violationCount int
}

// New builds a Monitor from config, optionally wired to a ledger for
// auto-logging. A nil ledger with AutoLog set is a no-op: auto-logging is
// simply skipped.
func New(config Config, led *ledger.Ledger) *Monitor {
	if len(config.Rules) == 0 {
		config.Rules = defaultRules()
	}
	return &Monitor{config: config, ledger: led}
}

// Check runs the configured rules, in order, against the operation and
// returns the first violation found (later rules are not run), or nil if
// none fired. A found
// violation is dispatched to handlers (and, if configured, the ledger)
// before being returned.
func (m *Monitor) Check(operation string, inputs []nu.Pair, output nu.Pair) (*rule.Event, error) {
	for _, r := range m.config.Rules {
		event := r.Check(operation, inputs, output)
		if event == nil {
			continue
		}

		m.mu.Lock()
		m.eventCount++
		if event.Level == rule.Error || event.Level == rule.Critical {
			m.violationCount++
		}
		m.mu.Unlock()

		if err := m.handleEvent(*event, inputs, output); err != nil {
			return event, err
		}
		return event, nil
	}
	return nil, nil
}

// Monitor runs Check and reports whether the operation passed (no
// violation).
func (m *Monitor) Monitor(operation string, inputs []nu.Pair, output nu.Pair) (bool, error) {
	event, err := m.Check(operation, inputs, output)
	return event == nil, err
}

// Escalate dispatches event through handlers (and optionally the ledger)
// without running rule checks, for callers that detect violations outside
// the normal rule pipeline.
func (m *Monitor) Escalate(event rule.Event, inputs []nu.Pair, output nu.Pair) error {
	m.mu.Lock()
	m.eventCount++
	if event.Level == rule.Error || event.Level == rule.Critical {
		m.violationCount++
	}
	m.mu.Unlock()
	return m.handleEvent(event, inputs, output)
}

func (m *Monitor) handleEvent(event rule.Event, inputs []nu.Pair, output nu.Pair) error {
	if m.config.AutoLog && m.ledger != nil {
		if err := m.logToLedger(event, inputs, output); err != nil {
			return err
		}
	}

	// A handler failure never aborts monitoring: it is caught and logged,
	// then dispatch continues to the remaining handlers, the way the
	// reference implementation's try/except around each handler call does.
	for _, h := range m.config.Handlers {
		if h.ShouldHandle(event) {
			m.invokeHandler(h, event)
		}
	}

	if m.config.AutoLog && m.ledger != nil {
		if err := m.logToLedger(event, inputs, output); err != nil {
			return err
		}
	}

	if m.config.HaltOnCritical && event.Level == rule.Critical {
		return errs.New(errs.CriticalHalt, fmt.Sprintf("critical event: %s", event.Message))
	}
	return nil
}

// invokeHandler runs a single handler, recovering a panic and logging both
// panics and returned errors so neither aborts dispatch to later handlers.
func (m *Monitor) invokeHandler(h Handler, event rule.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logHandlerFailure(fmt.Sprintf("handler %T panicked on %s: %v", h, event.Operation, r))
		}
	}()
	if err := h.Handle(event); err != nil {
		m.logHandlerFailure(fmt.Sprintf("handler %T failed on %s: %v", h, event.Operation, err))
	}
}

func (m *Monitor) logHandlerFailure(line string) {
	if m.config.ErrorSink != nil {
		m.config.ErrorSink(line)
		return
	}
	fmt.Fprintln(os.Stderr, line)
}

func (m *Monitor) logToLedger(event rule.Event, inputs []nu.Pair, output nu.Pair) error {
	pairInputs := make([][2]float64, len(inputs))
	for i, in := range inputs {
		pairInputs[i] = [2]float64{in.N, in.U}
	}
	coverage := nu.Coverage(output)
	invariantPassed := event.Level != rule.Critical

	_, err := m.ledger.Append("guard_"+event.Operation, pairInputs, [2]float64{output.N, output.U}, coverage, invariantPassed, "")
	if err != nil {
		return errs.Wrap(errs.BackendFailure, "auto-log event to ledger", err)
	}
	return nil
}

// Stats is a snapshot of monitoring counters and configuration, suitable
// for exporting or printing.
type Stats struct {
	TotalEvents    int
	Violations     int
	RuleNames      []string
	HandlerCount   int
	AutoLog        bool
	HaltOnCritical bool
}

// Stats returns a snapshot of this monitor's counters and configuration.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.config.Rules))
	for i, r := range m.config.Rules {
		names[i] = r.Name()
	}
	return Stats{
		TotalEvents:    m.eventCount,
		Violations:     m.violationCount,
		RuleNames:      names,
		HandlerCount:   len(m.config.Handlers),
		AutoLog:        m.config.AutoLog,
		HaltOnCritical: m.config.HaltOnCritical,
	}
}

// Reset zeroes the event and violation counters.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount = 0
	m.violationCount = 0
}

// AddRule appends a rule to the monitor's rule set.
func (m *Monitor) AddRule(r rule.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Rules = append(m.config.Rules, r)
}

// AddHandler appends a handler to the monitor's handler set.
func (m *Monitor) AddHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Handlers = append(m.config.Handlers, h)
}
