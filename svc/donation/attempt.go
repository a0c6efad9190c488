package donation

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fundkit/pkg/statemachine"
)

// AttemptState is the lifecycle of one donation attempt.
type AttemptState int

const (
	AttemptIdle AttemptState = iota
	AttemptCreating
	AttemptAwaitingExternalCompletion
	AttemptVerifying
	AttemptVerified
	AttemptFailed
)

func (s AttemptState) String() string {
	switch s {
	case AttemptIdle:
		return "idle"
	case AttemptCreating:
		return "creating"
	case AttemptAwaitingExternalCompletion:
		return "awaiting_external_completion"
	case AttemptVerifying:
		return "verifying"
	case AttemptVerified:
		return "verified"
	case AttemptFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events apply.
func (s AttemptState) Terminal() bool {
	return s == AttemptVerified || s == AttemptFailed
}

type AttemptEvent int

const (
	EventCreate AttemptEvent = iota
	EventCreated
	EventCreateFailed
	// EventReturned rebuilds an attempt from the checkout return trip.
	EventReturned
	EventVerify
	EventVerified
	EventVerifyFailed
)

func (e AttemptEvent) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventCreated:
		return "created"
	case EventCreateFailed:
		return "create_failed"
	case EventReturned:
		return "returned"
	case EventVerify:
		return "verify"
	case EventVerified:
		return "verified"
	case EventVerifyFailed:
		return "verify_failed"
	default:
		return "unknown"
	}
}

var attemptTable = statemachine.MustNewTable(
	statemachine.WithTransition(AttemptIdle, EventCreate, AttemptCreating),
	statemachine.WithTransition(AttemptCreating, EventCreated, AttemptAwaitingExternalCompletion),
	statemachine.WithTransition(AttemptCreating, EventCreateFailed, AttemptFailed),
	statemachine.WithTransition(AttemptIdle, EventReturned, AttemptAwaitingExternalCompletion),
	statemachine.WithTransition(AttemptAwaitingExternalCompletion, EventVerify, AttemptVerifying),
	statemachine.WithTransition(AttemptVerifying, EventVerified, AttemptVerified),
	statemachine.WithTransition(AttemptVerifying, EventVerifyFailed, AttemptFailed),
)

// Attempt is one pass through the donation flow. Initiate produces an
// attempt that stops at AwaitingExternalCompletion; Reconcile starts a new
// one from the return context.
type Attempt struct {
	ID        uuid.UUID
	SessionID string
	machine   *statemachine.Machine[AttemptState, AttemptEvent]
}

func newAttempt(id uuid.UUID) *Attempt {
	return &Attempt{ID: id, machine: statemachine.NewMachine(attemptTable, AttemptIdle)}
}

func (a *Attempt) State() AttemptState {
	return a.machine.Current()
}

// Trail lists the transitions the attempt went through.
func (a *Attempt) Trail() []statemachine.Step[AttemptState, AttemptEvent] {
	return a.machine.Trail()
}

func (a *Attempt) fire(ctx context.Context, ev AttemptEvent) error {
	return a.machine.Fire(ctx, ev, a)
}

// sessionStatus maps the attempt state to what the client knows about the
// backend's checkout session.
func (a *Attempt) sessionStatus() SessionStatus {
	switch a.State() {
	case AttemptVerifying:
		return StatusCompletedUnverified
	case AttemptVerified:
		return StatusVerified
	case AttemptFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
