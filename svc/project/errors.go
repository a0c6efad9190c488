package project

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

var (
	ErrProject          = errors.New("project request failed")
	ErrNotFound         = errors.New("project not found")
	ErrNotAuthenticated = auth.ErrNotAuthenticated
)

// Error carries the message a view should display for a failed catalog call.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrProject:
		return true
	case ErrNotFound:
		return apiclient.StatusCode(e.Cause) == http.StatusNotFound
	}
	return false
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(fallback string, cause error) *Error {
	msg := apiclient.BackendMessage(cause)
	if msg == "" {
		msg = fallback
	}
	return &Error{Message: msg, Cause: cause}
}
