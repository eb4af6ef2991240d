package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-authorisation-service/internal/database"
	"go-authorisation-service/internal/model"
)

const sessionColumns = `id, user_id, created, expires, ip, disabled`

type SessionRepository struct {
	pool     *pgxpool.Pool
	duration time.Duration
}

func NewSessionRepository(pool *pgxpool.Pool, duration time.Duration) *SessionRepository {
	return &SessionRepository{pool: pool, duration: duration}
}

func (r *SessionRepository) Get(ctx context.Context, id int64) (model.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	where, args := sessionWhere(filter)

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Create(ctx context.Context, userID int64, ip *string) (model.Session, error) {
	now := time.Now().UTC()
	s, err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, created, expires, ip, disabled)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING `+sessionColumns,
		userID, now, now.Add(r.duration), ip))
	if err != nil {
		return model.Session{}, database.TranslateError("create session", err)
	}
	return s, nil
}

func (r *SessionRepository) Update(ctx context.Context, s model.Session) (model.Session, error) {
	updated, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE sessions
		 SET user_id = $2, created = $3, expires = $4, ip = $5, disabled = $6
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		s.ID, s.UserID, s.Created, s.Expires, s.IP, s.Disabled))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, database.TranslateError("update session", err)
	}
	return updated, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return database.TranslateError("delete session", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

// Rotate disables every live session of the user and creates a fresh one in a
// single transaction. The user row is locked first so concurrent logins for
// the same user serialize instead of each keeping a live session.
func (r *SessionRepository) Rotate(ctx context.Context, userID int64, ip *string) (model.Session, int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Session{}, 0, fmt.Errorf("begin rotate session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, 0, model.ErrUserNotFound
	}
	if err != nil {
		return model.Session{}, 0, fmt.Errorf("lock user for rotate: %w", err)
	}

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET disabled = TRUE
		 WHERE user_id = $1 AND disabled = FALSE AND expires >= $2`,
		userID, now)
	if err != nil {
		return model.Session{}, 0, fmt.Errorf("disable live sessions: %w", err)
	}

	created, err := scanSession(tx.QueryRow(ctx,
		`INSERT INTO sessions (user_id, created, expires, ip, disabled)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING `+sessionColumns,
		userID, now, now.Add(r.duration), ip))
	if err != nil {
		return model.Session{}, 0, database.TranslateError("create session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Session{}, 0, fmt.Errorf("commit rotate session: %w", err)
	}

	return created, tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Created, &s.Expires, &s.IP, &s.Disabled)
	s.Created = s.Created.UTC()
	s.Expires = s.Expires.UTC()
	return s, err
}

func sessionWhere(filter model.SessionFilter) (string, []any) {
	clauses := make([]string, 0, 8)
	args := make([]any, 0, 8)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("id = ANY($%d)", filter.IDs)
	}
	if len(filter.UserIDs) > 0 {
		add("user_id = ANY($%d)", filter.UserIDs)
	}
	if len(filter.IPs) > 0 {
		add("ip = ANY($%d)", filter.IPs)
	}
	if filter.Disabled != nil {
		add("disabled = $%d", *filter.Disabled)
	}
	if filter.CreatedGTE != nil {
		add("created >= $%d", *filter.CreatedGTE)
	}
	if filter.CreatedLTE != nil {
		add("created <= $%d", *filter.CreatedLTE)
	}
	if filter.ExpiresGTE != nil {
		add("expires >= $%d", *filter.ExpiresGTE)
	}
	if filter.ExpiresLTE != nil {
		add("expires <= $%d", *filter.ExpiresLTE)
	}

	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), args
}
