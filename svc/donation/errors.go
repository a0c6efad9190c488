package donation

import (
	"errors"

	"github.com/dmitrymomot/fundkit/pkg/apiclient"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

var (
	ErrNotAuthenticated       = auth.ErrNotAuthenticated
	ErrInvalidAmount          = errors.New("donation amount must be greater than zero")
	ErrCheckoutCreationFailed = errors.New("checkout session could not be created")
	ErrVerificationFailed     = errors.New("payment verification failed")
	ErrDonationFailed         = errors.New("donation failed")
	ErrInvalidReturnContext   = errors.New("invalid checkout return context")
	ErrInvalidReturnBase      = errors.New("invalid return base url")
)

// Error carries a user-facing message for a failed donation call.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
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
