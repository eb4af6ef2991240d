package database

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"go-authorisation-service/pkg/apierror"
)

// TranslateError maps constraint violations raised by write statements to
// client errors. Anything else is wrapped with op and left fatal.
func TranslateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation:
			return apierror.New("BAD_REQUEST", "referenced record does not exist", pgErr.Detail, http.StatusBadRequest)
		case pgerrcode.UniqueViolation:
			return apierror.New("ALREADY_EXISTS", "record already exists", pgErr.Detail, http.StatusConflict)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
