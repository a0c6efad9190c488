package backer

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/fundkit/handler"
	"github.com/dmitrymomot/fundkit/pkg/binder"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/validator"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/donation"
	"github.com/dmitrymomot/fundkit/svc/project"
)

// httpError maps a service error to its HTTP form. Validation errors pass
// through unchanged; handler.JSONError renders them as 422.
func httpError(err error) error {
	switch {
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, binder.ErrBodyTooLarge):
		return handler.ErrRequestTooLarge.WithCause("Request body too large", err)
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return handler.ErrUnsupportedMediaType.WithCause("Expected an application/json body", err)
	case errors.Is(err, binder.ErrFailedToParseJSON):
		return handler.ErrBadRequest.WithCause("Malformed request body", err)
	case errors.Is(err, donation.ErrInvalidReturnContext):
		return handler.ErrBadRequest.WithCause("Invalid payment return parameters", err)
	case errors.Is(err, auth.ErrSessionChanged):
		return handler.ErrConflict.WithCause("Your session changed, please retry", err)
	case errors.Is(err, auth.ErrNotAuthenticated):
		return handler.ErrUnauthorized.WithCause("Please log in to continue", err)
	case errors.Is(err, project.ErrNotFound):
		return handler.ErrNotFound.WithCause("Project not found", err)
	case errors.Is(err, donation.ErrCheckoutCreationFailed),
		errors.Is(err, donation.ErrVerificationFailed),
		errors.Is(err, donation.ErrDonationFailed),
		errors.Is(err, project.ErrProject),
		errors.Is(err, auth.ErrNetwork):
		return handler.ErrBadGateway.WithCause(err.Error(), err)
	case errors.Is(err, auth.ErrLoginFailed), errors.Is(err, auth.ErrAuth):
		return handler.ErrUnauthorized.WithCause(err.Error(), err)
	case errors.Is(err, auth.ErrRegisterFailed):
		return handler.ErrBadRequest.WithCause(err.Error(), err)
	}
	return err
}

// fail logs err and renders it.
func (s *service) fail(ctx handler.Context, err error) handler.Response {
	mapped := httpError(err)

	var httpErr handler.HTTPError
	switch {
	case validator.IsValidationError(mapped):
		s.log.DebugContext(ctx, "request rejected by validation", logger.Error(err))
	case errors.As(mapped, &httpErr) && httpErr.Code < http.StatusInternalServerError:
		s.log.DebugContext(ctx, "request failed", logger.Error(err))
	default:
		s.log.ErrorContext(ctx, "request failed", logger.Error(err))
	}
	return handler.JSONError(mapped)
}

func (s *service) handleError(ctx handler.Context, err error) {
	_ = s.fail(ctx, err).Render(ctx.ResponseWriter(), ctx.Request())
}
