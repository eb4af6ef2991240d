package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-authorisation-service/internal/database"
	"go-authorisation-service/internal/model"
)

const userColumns = `id, username, password, name, scopes`

type UserRepository struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

func NewUserRepository(pool *pgxpool.Pool, bcryptCost int) *UserRepository {
	return &UserRepository{pool: pool, bcryptCost: bcryptCost}
}

func (r *UserRepository) Get(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	where, args := userWhere(filter)

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, input model.CreateUser) (model.User, error) {
	hash, err := hashPassword(input.Password, r.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password, name, scopes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		strings.TrimSpace(input.Username), hash, input.Name, nonNilScopes(input.Scopes)))
	if err != nil {
		return model.User{}, database.TranslateError("create user", err)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, input model.UpdateUser) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, name = $3, scopes = $4
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, strings.TrimSpace(input.Username), input.Name, nonNilScopes(input.Scopes)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, database.TranslateError("update user", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, password string) (model.User, error) {
	hash, err := hashPassword(password, r.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET password = $2 WHERE id = $1 RETURNING `+userColumns, id, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, database.TranslateError("update password", err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.TranslateError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// VerifyPassword returns the user only when password matches its stored hash.
func (r *UserRepository) VerifyPassword(ctx context.Context, username string, password string) (model.User, error) {
	u, err := r.GetByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	if !passwordMatches(u.PasswordHash, password) {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Scopes)
	if u.Scopes == nil {
		u.Scopes = []string{}
	}
	return u, err
}

func userWhere(filter model.UserFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("id = ANY($%d)", filter.IDs)
	}
	if len(filter.Usernames) > 0 {
		add("username = ANY($%d)", filter.Usernames)
	}
	if len(filter.Names) > 0 {
		add("name = ANY($%d)", filter.Names)
	}
	if len(filter.Scopes) > 0 {
		add("scopes @> $%d", filter.Scopes)
	}

	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), args
}

func nonNilScopes(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return scopes
}
