package auth

import (
	"time"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/statemachine"
)

// Status is the coarse session state.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusLoading
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Event drives Status transitions.
type Event int

const (
	EventTokenRestored Event = iota
	EventIdentityLoaded
	EventIdentityFailed
	EventLoginSucceeded
	EventLoginFailed
	EventRegisterSucceeded
	EventRegisterFailed
	EventLoggedOut
	EventErrorCleared
)

var eventNames = [...]string{
	EventTokenRestored:     "token_restored",
	EventIdentityLoaded:    "identity_loaded",
	EventIdentityFailed:    "identity_failed",
	EventLoginSucceeded:    "login_succeeded",
	EventLoginFailed:       "login_failed",
	EventRegisterSucceeded: "register_succeeded",
	EventRegisterFailed:    "register_failed",
	EventLoggedOut:         "logged_out",
	EventErrorCleared:      "error_cleared",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Snapshot is an immutable view of the session. Identity is never set
// without a token, and Authenticated always carries a token.
type Snapshot struct {
	Status    Status
	Token     string
	Identity  *fundapi.User
	Err       *Error
	ExpiresAt time.Time
	Version   uint64
}

func (s Snapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Token != ""
}

func (s Snapshot) IsLoading() bool {
	return s.Status == StatusLoading
}

// UserID returns the identity's id or "".
func (s Snapshot) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

const (
	unauth  = StatusUnauthenticated
	loading = StatusLoading
	authed  = StatusAuthenticated
)

// transitions is the complete session table. Any pair missing here is a bug
// at the call site and surfaces as statemachine.ErrNoTransitionAvailable.
var transitions = statemachine.MustNewTable(
	statemachine.WithTransition(unauth, EventTokenRestored, loading),
	statemachine.WithTransition(unauth, EventLoginSucceeded, authed),
	statemachine.WithTransition(unauth, EventRegisterSucceeded, authed),
	statemachine.WithTransition(unauth, EventLoginFailed, unauth),
	statemachine.WithTransition(unauth, EventRegisterFailed, unauth),
	statemachine.WithTransition(unauth, EventLoggedOut, unauth),

	statemachine.WithTransition(loading, EventIdentityLoaded, authed),
	statemachine.WithTransition(loading, EventIdentityFailed, unauth),
	statemachine.WithTransition(loading, EventLoggedOut, unauth),
	statemachine.WithTransition(loading, EventLoginSucceeded, authed),
	statemachine.WithTransition(loading, EventRegisterSucceeded, authed),
	statemachine.WithTransition(loading, EventLoginFailed, unauth),
	statemachine.WithTransition(loading, EventRegisterFailed, unauth),

	statemachine.WithTransition(authed, EventIdentityLoaded, authed),
	statemachine.WithTransition(authed, EventIdentityFailed, unauth),
	statemachine.WithTransition(authed, EventLoginSucceeded, authed),
	statemachine.WithTransition(authed, EventRegisterSucceeded, authed),
	statemachine.WithTransition(authed, EventLoginFailed, unauth),
	statemachine.WithTransition(authed, EventRegisterFailed, unauth),
	statemachine.WithTransition(authed, EventLoggedOut, unauth),

	statemachine.WithSelfLoop[Status](EventErrorCleared, unauth, loading, authed),
)

// change is an event plus its payload.
type change struct {
	event     Event
	token     string
	identity  *fundapi.User
	err       *Error
	expiresAt time.Time
}

// reduce applies c to prev and returns the next snapshot.
func reduce(prev Snapshot, c change) (Snapshot, error) {
	status, err := transitions.Next(prev.Status, c.event)
	if err != nil {
		return prev, err
	}

	next := prev
	next.Status = status
	next.Version = prev.Version + 1

	switch c.event {
	case EventTokenRestored:
		next.Token, next.ExpiresAt = c.token, c.expiresAt
		next.Identity, next.Err = nil, nil
	case EventIdentityLoaded:
		next.Identity, next.Err = cloneUser(c.identity), nil
	case EventLoginSucceeded, EventRegisterSucceeded:
		next.Token, next.ExpiresAt = c.token, c.expiresAt
		next.Identity, next.Err = cloneUser(c.identity), nil
	case EventIdentityFailed, EventLoginFailed, EventRegisterFailed:
		next.Token, next.ExpiresAt, next.Identity = "", time.Time{}, nil
		next.Err = c.err
	case EventLoggedOut:
		next.Token, next.ExpiresAt, next.Identity, next.Err = "", time.Time{}, nil, nil
	case EventErrorCleared:
		next.Err = nil
	}
	return next, nil
}

func cloneUser(u *fundapi.User) *fundapi.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
