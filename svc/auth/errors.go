package auth

import (
	"errors"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
)

// Error kinds surfaced as Snapshot.Err and returned from manager operations.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuth             = errors.New("session could not be confirmed")
	ErrLoginFailed      = errors.New("login failed")
	ErrRegisterFailed   = errors.New("registration failed")
	ErrNetwork          = errors.New("network error")
)

var (
	// ErrSessionChanged is returned when an operation's result was discarded
	// because a newer login, registration or logout superseded it.
	ErrSessionChanged = errors.New("session changed while request was in flight")
	ErrTokenExpired   = errors.New("token expired")
)

// Error is a user-facing session error. Kind is one of the Err* sentinels
// above; Message is what a view should display.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return target == ErrNetwork && apiclient.IsNetworkError(e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind error, fallback string, cause error) *Error {
	msg := apiclient.BackendMessage(cause)
	if msg == "" {
		msg = fallback
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
