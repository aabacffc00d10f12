// Package statemachine tracks the stages of a synchronization run as a
// finite state machine with guarded transitions and transition hooks.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Stage is a state of a run.
type Stage string

// Event triggers a stage transition.
type Event string

// Run stages.
const (
	StagePending   Stage = "pending"
	StageFitting   Stage = "fitting"
	StageCombining Stage = "combining"
	StageVerifying Stage = "verifying"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Run events.
const (
	EventStart    Event = "start"    // channels started
	EventFitted   Event = "fitted"   // both channel estimates available
	EventCombined Event = "combined" // timeline built, verification next
	EventFinish   Event = "finish"   // run complete
	EventAbort    Event = "abort"    // cancelled or failed
)

var (
	// ErrNoTransition is returned when the current stage has no transition
	// for an event.
	ErrNoTransition = errors.New("statemachine: no transition")

	// ErrGuardRejected is returned when a guard refuses a transition.
	ErrGuardRejected = errors.New("statemachine: guard rejected transition")
)

// GuardFunc decides whether a transition may proceed.
type GuardFunc func(ctx context.Context, from, to Stage, event Event) bool

// ActionFunc runs during a transition, before the stage changes.
type ActionFunc func(ctx context.Context, from, to Stage, event Event) error

// HookFunc is called when a stage is entered or exited.
type HookFunc func(ctx context.Context, stage Stage) error

// StageConfig attaches hooks to a stage.
type StageConfig struct {
	Name    Stage
	OnEnter HookFunc
	OnExit  HookFunc
}

// Transition moves the machine from one stage to another on an event.
type Transition struct {
	From   Stage
	To     Stage
	Event  Event
	Guard  GuardFunc
	Action ActionFunc
}

// Record is one completed transition.
type Record struct {
	From  Stage     `json:"from"`
	To    Stage     `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

// TransitionHook is called after every completed transition.
type TransitionHook func(ctx context.Context, rec Record)

// Machine is a concurrency-safe finite state machine that keeps the history
// of its transitions.
type Machine struct {
	mu          sync.RWMutex
	current     Stage
	stages      map[Stage]StageConfig
	transitions map[Stage]map[Event]Transition
	hooks       []TransitionHook
	history     []Record
	now         func() time.Time
}

// NewMachine creates a machine in the initial stage.
func NewMachine(initial Stage) *Machine {
	return &Machine{
		current:     initial,
		stages:      make(map[Stage]StageConfig),
		transitions: make(map[Stage]map[Event]Transition),
		now:         time.Now,
	}
}

// NewRunLifecycle builds the stage machine of a pairwise run:
//
//	pending -start-> fitting -fitted-> combining -combined-> verifying -finish-> done
//	                                   combining -finish-> done
//
// Every non-terminal stage can abort to failed. Combining only moves on to
// verifying when verify reports true.
func NewRunLifecycle(verify func() bool) *Machine {
	m := NewMachine(StagePending)
	for _, t := range []Transition{
		{From: StagePending, To: StageFitting, Event: EventStart},
		{From: StageFitting, To: StageCombining, Event: EventFitted},
		{From: StageCombining, To: StageVerifying, Event: EventCombined,
			Guard: func(context.Context, Stage, Stage, Event) bool { return verify != nil && verify() }},
		{From: StageCombining, To: StageDone, Event: EventFinish},
		{From: StageVerifying, To: StageDone, Event: EventFinish},
	} {
		// Transitions are unique by construction.
		_ = m.AddTransition(t)
	}
	for _, s := range []Stage{StagePending, StageFitting, StageCombining, StageVerifying} {
		_ = m.AddTransition(Transition{From: s, To: StageFailed, Event: EventAbort})
	}
	return m
}

// WithClock sets the time source for transition records.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// AddStage registers hooks for a stage.
func (m *Machine) AddStage(cfg StageConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[cfg.Name] = cfg
}

// AddTransition registers a transition. Each stage has at most one
// transition per event.
func (m *Machine) AddTransition(t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transitions[t.From] == nil {
		m.transitions[t.From] = make(map[Event]Transition)
	}
	if _, exists := m.transitions[t.From][t.Event]; exists {
		return fmt.Errorf("transition from %s on %s already exists", t.From, t.Event)
	}
	m.transitions[t.From][t.Event] = t
	return nil
}

// Trigger fires an event from the current stage.
func (m *Machine) Trigger(ctx context.Context, event Event) error {
	m.mu.RLock()
	from := m.current
	t, ok := m.transitions[from][event]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w from %s on %s", ErrNoTransition, from, event)
	}

	if t.Guard != nil && !t.Guard(ctx, t.From, t.To, event) {
		return fmt.Errorf("%w: %s -> %s on %s", ErrGuardRejected, t.From, t.To, event)
	}
	return m.execute(ctx, t)
}

// execute runs OnExit, the action, the stage change, OnEnter and the hooks
// in that order. A failing OnExit or action leaves the stage unchanged.
func (m *Machine) execute(ctx context.Context, t Transition) error {
	m.mu.RLock()
	fromCfg, hasFrom := m.stages[t.From]
	toCfg, hasTo := m.stages[t.To]
	m.mu.RUnlock()

	if hasFrom && fromCfg.OnExit != nil {
		if err := fromCfg.OnExit(ctx, t.From); err != nil {
			return fmt.Errorf("exit %s: %w", t.From, err)
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, t.From, t.To, t.Event); err != nil {
			return fmt.Errorf("action %s -> %s: %w", t.From, t.To, err)
		}
	}

	m.mu.Lock()
	m.current = t.To
	rec := Record{From: t.From, To: t.To, Event: t.Event, At: m.now()}
	m.history = append(m.history, rec)
	hooks := m.hooks
	m.mu.Unlock()

	if hasTo && toCfg.OnEnter != nil {
		if err := toCfg.OnEnter(ctx, t.To); err != nil {
			return fmt.Errorf("enter %s: %w", t.To, err)
		}
	}
	for _, hook := range hooks {
		hook(ctx, rec)
	}
	return nil
}

// Current returns the current stage.
func (m *Machine) Current() Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Can reports whether the current stage has a transition for event.
// Guards are not evaluated.
func (m *Machine) Can(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions[m.current][event]
	return ok
}

// Terminal reports whether the current stage has no outgoing transitions.
func (m *Machine) Terminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transitions[m.current]) == 0
}

// OnTransition registers a hook called after every transition.
func (m *Machine) OnTransition(hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// History returns a copy of the completed transitions, oldest first.
func (m *Machine) History() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}

// Durations returns how long the machine stayed in each stage it has left.
func (m *Machine) Durations(started time.Time) map[Stage]time.Duration {
	return StageDurations(m.History(), started)
}

// StageDurations measures each left stage between consecutive records,
// the first stage starting at started.
func StageDurations(history []Record, started time.Time) map[Stage]time.Duration {
	out := make(map[Stage]time.Duration)
	prev := started
	for _, r := range history {
		out[r.From] += r.At.Sub(prev)
		prev = r.At
	}
	return out
}
