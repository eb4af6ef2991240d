package database

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"go-authorisation-service/pkg/apierror"
)

func TestTranslateError(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, TranslateError("create session", nil))
	})

	t.Run("foreign key violation is a client error", func(t *testing.T) {
		err := TranslateError("create session", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, Detail: "user_id=9"})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
		require.Equal(t, "user_id=9", apiErr.Details)
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		err := TranslateError("create user", &pgconn.PgError{Code: pgerrcode.UniqueViolation})

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusConflict, apiErr.HTTPStatus)
	})

	t.Run("other errors stay fatal", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := TranslateError("create user", cause)

		var apiErr *apierror.APIError
		require.False(t, errors.As(err, &apiErr))
		require.ErrorIs(t, err, cause)
	})
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pgx5://u:p@db:5432/auth", migrateURL("postgres://u:p@db:5432/auth"))
	require.Equal(t, "pgx5://db/auth", migrateURL("postgresql://db/auth"))
	require.Equal(t, "pgx5://db/auth", migrateURL("pgx5://db/auth"))
}
