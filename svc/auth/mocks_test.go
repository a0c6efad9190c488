package auth_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Login(ctx context.Context, in fundapi.Credentials) (fundapi.AuthResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(fundapi.AuthResult), args.Error(1)
}

func (m *mockBackend) Register(ctx context.Context, in fundapi.Registration) (fundapi.AuthResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(fundapi.AuthResult), args.Error(1)
}

func (m *mockBackend) Me(ctx context.Context) (fundapi.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(fundapi.User), args.Error(1)
}
