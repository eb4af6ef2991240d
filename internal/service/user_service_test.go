package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/repository"
)

func TestUserService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := NewUserService(repository.NewMemoryUserRepository(bcrypt.MinCost), bus)

	created, err := svc.Create(ctx, 1, model.CreateUser{Username: "grace", Password: "compiler", Name: "Grace", Scopes: []string{"sessions.get"}})
	require.NoError(t, err)
	assert.Equal(t, event.TypeUserCreated, (<-events).Type)

	byName, err := svc.GetByUsername(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, created, byName)

	updated, err := svc.Update(ctx, 1, created.ID, model.UpdateUser{Username: "grace", Name: "Grace Hopper", Scopes: []string{"sessions"}})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", updated.Name)
	assert.Equal(t, event.TypeUserUpdated, (<-events).Type)

	list, err := svc.List(ctx, model.UserFilter{Scopes: []string{"sessions"}})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, 1, created.ID))
	assert.Equal(t, event.TypeUserDeleted, (<-events).Type)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestSessionService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := repository.NewMemoryUserRepository(bcrypt.MinCost)
	user, err := users.Create(ctx, model.CreateUser{Username: "alan", Password: "enigma-1", Name: "Alan"})
	require.NoError(t, err)

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := NewSessionService(repository.NewMemorySessionRepository(users, time.Hour), bus)

	session, err := svc.Create(ctx, user.ID, model.CreateSession{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, event.TypeSessionCreated, (<-events).Type)

	ip := "10.0.0.9"
	updated, err := svc.Update(ctx, user.ID, session.ID, model.UpdateSession{IP: &ip})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", *updated.IP)
	assert.False(t, updated.Disabled)
	assert.Equal(t, event.TypeSessionUpdated, (<-events).Type)

	disabled := true
	updated, err = svc.Update(ctx, user.ID, session.ID, model.UpdateSession{Disabled: &disabled})
	require.NoError(t, err)
	assert.True(t, updated.Disabled)
	assert.Equal(t, "10.0.0.9", *updated.IP)
	assert.Equal(t, event.TypeSessionDisabled, (<-events).Type)

	_, err = svc.Update(ctx, user.ID, 999, model.UpdateSession{})
	require.ErrorIs(t, err, model.ErrSessionNotFound)

	require.NoError(t, svc.Delete(ctx, user.ID, session.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID, session.ID), model.ErrSessionNotFound)
}
