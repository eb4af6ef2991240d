package auth

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/token"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Get(ctx context.Context, id int64) (model.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Session), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Get(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

type brokenDecoder struct{}

func (brokenDecoder) Decode(string) (*token.Payload, error) {
	return nil, token.ErrConfiguration
}
