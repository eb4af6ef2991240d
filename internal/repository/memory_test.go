package repository

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-authorisation-service/internal/model"
	"go-authorisation-service/pkg/apierror"
)

func newMemoryStores(t *testing.T) (*MemoryUserRepository, *MemorySessionRepository) {
	t.Helper()

	users := NewMemoryUserRepository(bcrypt.MinCost)
	return users, NewMemorySessionRepository(users, time.Hour)
}

func TestMemoryUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users, _ := newMemoryStores(t)

	created, err := users.Create(ctx, model.CreateUser{Username: "ada", Password: "correct-horse", Name: "Ada", Scopes: []string{"users", "sessions.get"}})
	require.NoError(t, err)
	require.NotEqual(t, "correct-horse", created.PasswordHash)

	t.Run("scopes keep their stored order", func(t *testing.T) {
		got, err := users.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"users", "sessions.get"}, got.Scopes)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := users.Create(ctx, model.CreateUser{Username: "ada", Password: "another-one", Name: "Ada 2"})
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
	})

	t.Run("verify password", func(t *testing.T) {
		got, err := users.VerifyPassword(ctx, "ada", "correct-horse")
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)

		_, err = users.VerifyPassword(ctx, "ada", "wrong")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)

		_, err = users.VerifyPassword(ctx, "nobody", "correct-horse")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("list filters by contained scopes", func(t *testing.T) {
		list, err := users.List(ctx, model.UserFilter{Scopes: []string{"users"}})
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = users.List(ctx, model.UserFilter{Scopes: []string{"orders"}})
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("update password changes verification", func(t *testing.T) {
		_, err := users.UpdatePassword(ctx, created.ID, "new-password")
		require.NoError(t, err)

		_, err = users.VerifyPassword(ctx, "ada", "correct-horse")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})
}

func TestMemorySessionRepositoryRotate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users, sessions := newMemoryStores(t)

	user, err := users.Create(ctx, model.CreateUser{Username: "grace", Password: "hopper-1906", Name: "Grace"})
	require.NoError(t, err)
	other, err := users.Create(ctx, model.CreateUser{Username: "alan", Password: "turing-1912", Name: "Alan"})
	require.NoError(t, err)

	first, err := sessions.Create(ctx, user.ID, nil)
	require.NoError(t, err)
	second, err := sessions.Create(ctx, user.ID, nil)
	require.NoError(t, err)
	foreign, err := sessions.Create(ctx, other.ID, nil)
	require.NoError(t, err)

	stale, err := sessions.Create(ctx, user.ID, nil)
	require.NoError(t, err)
	stale.Expires = time.Now().Add(-time.Minute)
	_, err = sessions.Update(ctx, stale)
	require.NoError(t, err)

	ip := "10.0.0.1"
	fresh, disabled, err := sessions.Rotate(ctx, user.ID, &ip)
	require.NoError(t, err)
	require.Equal(t, int64(2), disabled)
	require.False(t, fresh.Disabled)
	require.Equal(t, "10.0.0.1", *fresh.IP)

	for _, id := range []int64{first.ID, second.ID} {
		got, err := sessions.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, got.Disabled)
	}

	got, err := sessions.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.False(t, got.Disabled, "expired sessions are left as they are")

	got, err = sessions.Get(ctx, foreign.ID)
	require.NoError(t, err)
	require.False(t, got.Disabled)

	live, err := sessions.List(ctx, model.SessionFilter{UserIDs: []int64{user.ID}, Disabled: boolPtr(false), ExpiresGTE: timePtr(time.Now())})
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, fresh.ID, live[0].ID)
}

func TestMemorySessionRepositoryConcurrentRotate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users, sessions := newMemoryStores(t)

	user, err := users.Create(ctx, model.CreateUser{Username: "linus", Password: "penguin-1991", Name: "Linus"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, rotateErr := sessions.Rotate(ctx, user.ID, nil)
			require.NoError(t, rotateErr)
		}()
	}
	wg.Wait()

	live, err := sessions.List(ctx, model.SessionFilter{UserIDs: []int64{user.ID}, Disabled: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestMemorySessionRepositoryForeignKey(t *testing.T) {
	t.Parallel()

	_, sessions := newMemoryStores(t)

	_, err := sessions.Create(context.Background(), 404, nil)
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)

	_, _, err = sessions.Rotate(context.Background(), 404, nil)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	require.ErrorIs(t, sessions.Delete(context.Background(), 404), model.ErrSessionNotFound)
}

func boolPtr(v bool) *bool { return &v }

func timePtr(v time.Time) *time.Time { return &v }
