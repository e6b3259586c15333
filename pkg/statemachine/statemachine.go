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

// Action executes side effects during state transitions. Returning an error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for transition to proceed
	Actions []Action // Executed in order before the new state is returned
}

// StringState provides a simple string-based state implementation.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}

// Machine is a stateless transition table.
// Uses a nested map structure for O(1) transition lookups: [fromState][event][]Transition
type Machine struct {
	transitions map[string]map[string][]Transition
}

// New creates a machine from the given options. Panics on a malformed table,
// following the fail-fast pattern used for configuration errors elsewhere.
func New(opts ...Option) *Machine {
	m := &Machine{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			panic(fmt.Sprintf("statemachine: %v", err))
		}
	}
	return m
}

func (m *Machine) addTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	fromName := from.Name()
	if _, ok := m.transitions[fromName]; !ok {
		m.transitions[fromName] = make(map[string][]Transition)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	m.transitions[fromName][event.Name()] = append(m.transitions[fromName][event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire evaluates the transition table for the given current state and event.
// On success it runs the winning transition's actions in order and returns the
// target state; the caller is responsible for persisting it.
func (m *Machine) Fire(ctx context.Context, current State, event Event, data any) (State, error) {
	if current == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	transitions, ok := m.transitions[current.Name()][event.Name()]
	if !ok || len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(current.Name(), event.Name())
	}

	// First transition with passing guards wins (enables priority ordering)
	var valid *Transition
	for i, t := range transitions {
		if guardsPass(ctx, t, current, event, data) {
			valid = &transitions[i]
			break
		}
	}
	if valid == nil {
		return nil, NewErrTransitionRejected(current.Name(), event.Name())
	}

	for _, action := range valid.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, current, valid.To, event, data); err != nil {
			return nil, fmt.Errorf("action failed: %w", err)
		}
	}

	return valid.To, nil
}

// CanFire reports whether Fire would succeed for the given state and event,
// without executing any actions. Equivalent to a guard check without mutation.
func (m *Machine) CanFire(ctx context.Context, current State, event Event, data any) bool {
	if current == nil || event == nil {
		return false
	}

	transitions, ok := m.transitions[current.Name()][event.Name()]
	if !ok {
		return false
	}

	for _, t := range transitions {
		if guardsPass(ctx, t, current, event, data) {
			return true
		}
	}
	return false
}

func guardsPass(ctx context.Context, t Transition, from State, event Event, data any) bool {
	for _, guard := range t.Guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
