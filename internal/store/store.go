// Package store holds the Postgres repositories behind the directory and an
// in-memory equivalent used for tests and database-less development runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/staffdir/internal/apperr"
)

const pgUniqueViolation = "23505"

// ErrLastSuperAdmin guards against locking every super-admin out.
var ErrLastSuperAdmin = fmt.Errorf("%w: cannot demote or suspend the last active super-admin", apperr.ErrInvalidState)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows onto apperr.ErrNotFound and wraps anything else.
func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// conflict turns a unique violation into apperr.ErrConflict naming the field,
// resolved from the violated constraint.
func conflict(err error, fields map[string]string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	for constraint, field := range fields {
		if pgErr.ConstraintName == constraint {
			return &ConflictError{Field: field}
		}
	}
	return &ConflictError{}
}

// ConflictError reports which unique field collided. It matches apperr.ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return apperr.ErrConflict.Error()
	}
	return e.Field + " " + apperr.ErrConflict.Error()
}

func (e *ConflictError) Is(target error) bool { return target == apperr.ErrConflict }

// likePattern escapes LIKE metacharacters and wraps s for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
