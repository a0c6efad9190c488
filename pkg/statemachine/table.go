package statemachine

import (
	"context"
	"fmt"
)

// Table is an immutable transition table. It is safe for concurrent use once built.
type Table[S, E Symbol] struct {
	transitions map[S]map[E][]Transition[S, E]
}

// Option configures a table during construction.
type Option[S, E Symbol] func(*Table[S, E]) error

// TransitionOption attaches guards or actions to a single transition.
type TransitionOption[S, E Symbol] func(*Transition[S, E])

// NewTable builds a transition table from the given options.
func NewTable[S, E Symbol](opts ...Option[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNewTable works like NewTable but panics on a malformed table.
func MustNewTable[S, E Symbol](opts ...Option[S, E]) *Table[S, E] {
	t, err := NewTable(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// WithTransition adds a from --event--> to entry.
func WithTransition[S, E Symbol](from S, event E, to S, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		tr := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		return t.add(tr)
	}
}

// WithSelfLoop lets event fire from each of the given states without changing state.
func WithSelfLoop[S, E Symbol](event E, states ...S) Option[S, E] {
	return func(t *Table[S, E]) error {
		for _, s := range states {
			if err := t.add(Transition[S, E]{From: s, To: s, Event: event}); err != nil {
				return err
			}
		}
		return nil
	}
}

func WithGuard[S, E Symbol](g Guard[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if g != nil {
			tr.Guards = append(tr.Guards, g)
		}
	}
}

func WithAction[S, E Symbol](a Action[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		if a != nil {
			tr.Actions = append(tr.Actions, a)
		}
	}
}

func (t *Table[S, E]) add(tr Transition[S, E]) error {
	byEvent, ok := t.transitions[tr.From]
	if !ok {
		byEvent = make(map[E][]Transition[S, E])
		t.transitions[tr.From] = byEvent
	}
	// An unguarded entry shadows everything after it, so a second one is a table bug.
	for _, existing := range byEvent[tr.Event] {
		if len(existing.Guards) == 0 {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateTransition, tr.From, tr.Event)
		}
	}
	byEvent[tr.Event] = append(byEvent[tr.Event], tr)
	return nil
}

// Next resolves the target state for event fired from `from` without running actions.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	tr, err := t.resolve(context.Background(), from, event, nil)
	if err != nil {
		var zero S
		return zero, err
	}
	return tr.To, nil
}

// CanFire reports whether event has a permitted transition from state.
func (t *Table[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, err := t.resolve(ctx, from, event, data)
	return err == nil
}

// Apply resolves and runs the transition's actions, returning the new state.
func (t *Table[S, E]) Apply(ctx context.Context, from S, event E, data any) (S, error) {
	tr, err := t.resolve(ctx, from, event, data)
	if err != nil {
		var zero S
		return zero, err
	}
	for _, action := range tr.Actions {
		if err := action(ctx, from, tr.To, event, data); err != nil {
			var zero S
			return zero, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// first transition whose guards all pass wins
func (t *Table[S, E]) resolve(ctx context.Context, from S, event E, data any) (*Transition[S, E], error) {
	candidates := t.transitions[from][event]
	if len(candidates) == 0 {
		return nil, &ErrNoTransitionAvailable{StateName: from.String(), EventName: event.String()}
	}
	for i := range candidates {
		if guardsPass(ctx, &candidates[i], from, event, data) {
			return &candidates[i], nil
		}
	}
	return nil, &ErrTransitionRejected{StateName: from.String(), EventName: event.String()}
}

func guardsPass[S, E Symbol](ctx context.Context, tr *Transition[S, E], from S, event E, data any) bool {
	for _, g := range tr.Guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
