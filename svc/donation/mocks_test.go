package donation_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/svc/auth"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateCheckoutSession(ctx context.Context, in fundapi.CheckoutRequest) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) VerifyPayment(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBackend) Donate(ctx context.Context, projectID string, amount decimal.Decimal) (fundapi.Project, error) {
	args := m.Called(ctx, projectID, amount)
	return args.Get(0).(fundapi.Project), args.Error(1)
}

type mockRedirector struct {
	mock.Mock
}

func (m *mockRedirector) CheckoutURL(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

type staticSession struct {
	snap auth.Snapshot
}

func (s staticSession) Snapshot() auth.Snapshot {
	return s.snap
}
