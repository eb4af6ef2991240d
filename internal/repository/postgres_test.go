//go:build integration

package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-authorisation-service/internal/database"
	"go-authorisation-service/internal/model"
)

func newPostgresStores(t *testing.T) (*UserRepository, *SessionRepository) {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	require.NoError(t, database.EnsureSchema(url))

	db, err := database.New(context.Background(), url, 10, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewUserRepository(db.Pool, bcrypt.MinCost), NewSessionRepository(db.Pool, time.Hour)
}

// uniqueUsername keeps runs against a shared database independent.
func uniqueUsername(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func TestPostgresUserRepository(t *testing.T) {
	ctx := context.Background()
	users, _ := newPostgresStores(t)

	username := uniqueUsername("ada")
	created, err := users.Create(ctx, model.CreateUser{Username: username, Password: "correct-horse", Name: "Ada", Scopes: []string{"users", "sessions.get"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Delete(ctx, created.ID) })

	got, err := users.GetByUsername(ctx, username)
	require.NoError(t, err)
	require.Equal(t, []string{"users", "sessions.get"}, got.Scopes)

	_, err = users.Create(ctx, model.CreateUser{Username: username, Password: "another-one", Name: "Dup"})
	require.Error(t, err)

	_, err = users.VerifyPassword(ctx, username, "correct-horse")
	require.NoError(t, err)
	_, err = users.VerifyPassword(ctx, username, "wrong")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = users.Get(ctx, -1)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestPostgresSessionRotate(t *testing.T) {
	ctx := context.Background()
	users, sessions := newPostgresStores(t)

	user, err := users.Create(ctx, model.CreateUser{Username: uniqueUsername("rotate"), Password: "correct-horse", Name: "Rotate"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Delete(ctx, user.ID) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := sessions.Rotate(ctx, user.ID, nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	disabled := false
	live, err := sessions.List(ctx, model.SessionFilter{UserIDs: []int64{user.ID}, Disabled: &disabled})
	require.NoError(t, err)
	require.Len(t, live, 1)

	_, _, err = sessions.Rotate(ctx, -1, nil)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	require.ErrorIs(t, sessions.Delete(ctx, -1), model.ErrSessionNotFound)
}
