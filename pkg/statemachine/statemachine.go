// Package statemachine provides typed finite state machines built from an
// explicit transition table. Firing an event that has no entry for the
// current state is an error, never a silent no-op.
package statemachine

import "context"

// Symbol is the constraint for state and event types.
type Symbol interface {
	comparable
	String() string
}

// Guard evaluates whether a transition may proceed.
type Guard[S, E Symbol] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error aborts it.
type Action[S, E Symbol] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event.
type Transition[S, E Symbol] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // run in order before the state changes
}

// Step records one applied transition.
type Step[S, E Symbol] struct {
	From  S
	Event E
	To    S
}
