package statemachine

import (
	"context"
	"fmt"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guards []Guard // All must pass for transition to proceed
}

// Table is an immutable transition table. It holds no current state, so one
// table can evaluate transitions for any number of stored records.
// Lookups are [fromState][event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
}

// Option adds transitions to a table during construction.
type Option func(*Table) error

// New builds a table from the given options.
func New(opts ...Option) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew builds a table and panics if any option fails.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

// WithTransition adds a transition guarded by all of guards.
func WithTransition(from, to State, event Event, guards ...Guard) Option {
	return func(t *Table) error {
		return t.add(Transition{From: from, To: to, Event: event, Guards: guards})
	}
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	from := tr.From.Name()
	if _, ok := t.transitions[from]; !ok {
		t.transitions[from] = make(map[string][]Transition)
	}
	// Several transitions for one from/event pair branch on guards.
	t.transitions[from][tr.Event.Name()] = append(t.transitions[from][tr.Event.Name()], tr)
	return nil
}

// Next returns the state reached from "from" on event. The first transition
// whose guards all pass wins, so declaration order sets priority.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}
	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, &NoTransitionError{From: from.Name(), Event: event.Name()}
	}
	for _, tr := range candidates {
		if guardsPass(ctx, tr.Guards, from, event, data) {
			return tr.To, nil
		}
	}
	return nil, &RejectedError{From: from.Name(), Event: event.Name()}
}

// CanFire reports whether Next would succeed.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Next(ctx, from, event, data)
	return err == nil
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
