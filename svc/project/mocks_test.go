package project_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Projects(ctx context.Context) ([]fundapi.Project, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]fundapi.Project)
	return list, args.Error(1)
}

func (m *mockBackend) Project(ctx context.Context, id string) (fundapi.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(fundapi.Project), args.Error(1)
}

func (m *mockBackend) CreateProject(ctx context.Context, in fundapi.NewProject) (fundapi.Project, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(fundapi.Project), args.Error(1)
}

func (m *mockBackend) UserDonations(ctx context.Context) ([]fundapi.Donation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]fundapi.Donation)
	return list, args.Error(1)
}
