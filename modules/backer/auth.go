package backer

import (
	"net/http"

	"github.com/dmitrymomot/fundkit/handler"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (s *service) login(ctx handler.Context, req loginRequest) handler.Response {
	if err := s.session.Login(ctx, req.Email, req.Password); err != nil {
		return s.fail(ctx, err)
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, throttleKey(ctx.Request())); err != nil {
			s.log.WarnContext(ctx, "failed to reset login throttle", logger.Error(err))
		}
	}
	return handler.JSON(newSessionView(s.session.Snapshot()))
}

func (s *service) register(ctx handler.Context, req registerRequest) handler.Response {
	err := s.session.Register(ctx, auth.RegisterForm{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.Password2,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newSessionView(s.session.Snapshot()), handler.WithJSONStatus(http.StatusCreated))
}

func (s *service) logout(ctx handler.Context, _ struct{}) handler.Response {
	s.session.Logout(ctx)
	return handler.Empty()
}

func (s *service) me(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(newSessionView(s.session.Snapshot()))
}
