package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkrstic/peerlink/internal/repository"
)

const uniqueViolation = "23505"

// translateErr maps unique-constraint violations onto
// repository.ErrDuplicate so services stay free of pg error codes.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}
