package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/repository"
	"go-authorisation-service/internal/token"
	"go-authorisation-service/pkg/apierror"
)

type authFixture struct {
	svc      *AuthService
	users    *repository.MemoryUserRepository
	sessions *repository.MemorySessionRepository
	codec    *token.Codec
	events   <-chan event.Event
	user     model.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := repository.NewMemoryUserRepository(bcrypt.MinCost)
	sessions := repository.NewMemorySessionRepository(users, time.Hour)
	codec := token.NewCodec("service-secret", "HS256")
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	user, err := users.Create(context.Background(), model.CreateUser{Username: "ada", Password: "analytical", Name: "Ada", Scopes: []string{"users"}})
	require.NoError(t, err)

	return &authFixture{
		svc:      NewAuthService(users, sessions, codec, bus, nil),
		users:    users,
		sessions: sessions,
		codec:    codec,
		events:   events,
		user:     user,
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues a token bound to a fresh session", func(t *testing.T) {
		f := newAuthFixture(t)
		ip := "10.1.1.1"

		resp, err := f.svc.Login(context.Background(), LoginInput{Username: "ada", Password: "analytical", ClientAddr: "192.0.2.1", IP: &ip})
		require.NoError(t, err)
		assert.Equal(t, "ada", resp.User.Username)
		assert.Equal(t, "10.1.1.1", *resp.Session.IP)

		payload, err := f.codec.Decode(resp.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, payload)
		assert.Equal(t, resp.Session.ID, *payload.SessionID)
		assert.True(t, payload.Expires.Equal(resp.Session.Expires))

		got := <-f.events
		assert.Equal(t, event.TypeSessionCreated, got.Type)
	})

	t.Run("second login disables the first session", func(t *testing.T) {
		f := newAuthFixture(t)
		ctx := context.Background()
		in := LoginInput{Username: "ada", Password: "analytical", ClientAddr: "192.0.2.1"}

		first, err := f.svc.Login(ctx, in)
		require.NoError(t, err)
		second, err := f.svc.Login(ctx, in)
		require.NoError(t, err)

		old, err := f.sessions.Get(ctx, first.Session.ID)
		require.NoError(t, err)
		assert.True(t, old.Disabled)

		live := false
		list, err := f.sessions.List(ctx, model.SessionFilter{UserIDs: []int64{f.user.ID}, Disabled: &live})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.Session.ID, list[0].ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(context.Background(), LoginInput{Username: "ada", Password: "nope", ClientAddr: "192.0.2.1"})
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
		assert.Equal(t, "Log in failed.", apiErr.Message)
	})

	t.Run("unknown client", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(context.Background(), LoginInput{Username: "ada", Password: "analytical"})
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Client could not be determined.", apiErr.Message)
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginInput{Username: "ada", Password: "analytical", ClientAddr: "192.0.2.1"})
	require.NoError(t, err)

	creds := model.UserCredentials{
		TokenCredentials: model.TokenCredentials{Scheme: "Bearer", Token: resp.AccessToken, Session: resp.Session},
		User:             f.user,
	}

	out, err := f.svc.Logout(ctx, creds)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Session.Disabled)

	require.NoError(t, f.sessions.Delete(ctx, resp.Session.ID))
	out, err = f.svc.Logout(ctx, creds)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestAuthService_CheckToken(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	creds := model.UserCredentials{User: f.user}
	require.NotEmpty(t, creds.User.PasswordHash)

	out := f.svc.CheckToken(creds)
	assert.Empty(t, out.User.PasswordHash)
	assert.Equal(t, f.user.Scopes, out.User.Scopes)
}
