package repository

import (
	"context"

	"go-authorisation-service/internal/model"
)

// UserStore is implemented by the PostgreSQL and in-memory user repositories.
type UserStore interface {
	Get(ctx context.Context, id int64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Create(ctx context.Context, input model.CreateUser) (model.User, error)
	Update(ctx context.Context, id int64, input model.UpdateUser) (model.User, error)
	UpdatePassword(ctx context.Context, id int64, password string) (model.User, error)
	Delete(ctx context.Context, id int64) error
	VerifyPassword(ctx context.Context, username string, password string) (model.User, error)
}

// SessionStore is implemented by the PostgreSQL and in-memory session repositories.
type SessionStore interface {
	Get(ctx context.Context, id int64) (model.Session, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	Create(ctx context.Context, userID int64, ip *string) (model.Session, error)
	Update(ctx context.Context, s model.Session) (model.Session, error)
	Delete(ctx context.Context, id int64) error
	Rotate(ctx context.Context, userID int64, ip *string) (model.Session, int64, error)
}

var (
	_ UserStore    = (*UserRepository)(nil)
	_ UserStore    = (*MemoryUserRepository)(nil)
	_ SessionStore = (*SessionRepository)(nil)
	_ SessionStore = (*MemorySessionRepository)(nil)
)
