package aggregates

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
)

var (
	// ErrMalformed marks a record that fails validation or conversion.
	ErrMalformed = errors.New("malformed record")
	// ErrConstraint marks a referential or uniqueness violation.
	ErrConstraint = errors.New("constraint violation")
)

// MalformedError tags an error as a malformed record.
func MalformedError(msg string) error {
	return errors.Join(ErrMalformed, errors.New(strings.TrimSpace(msg)))
}

// ConstraintError tags an error as a constraint violation.
func ConstraintError(msg string) error {
	return errors.Join(ErrConstraint, errors.New(strings.TrimSpace(msg)))
}

// MapError maps driver, filesystem and domain failures into question error codes.
// Errors that already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var qErr *question.Error
	if errors.As(err, &qErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrMalformed):
		return question.Wrap(question.CodeMalformedRecord, op, err)
	case errors.Is(err, ErrConstraint),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return question.Wrap(question.CodeConstraintViolation, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return question.Wrap(question.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return question.Wrap(question.CodeIOFailure, op, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return question.Wrap(question.CodeIOFailure, op, err)
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code {
		case sqlite3.ErrConstraint:
			return question.Wrap(question.CodeConstraintViolation, op, err)
		case sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrReadonly, sqlite3.ErrFull,
			sqlite3.ErrPerm, sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return question.Wrap(question.CodeIOFailure, op, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		switch {
		case strings.HasPrefix(code, "23"): // integrity_constraint_violation class
			return question.Wrap(question.CodeConstraintViolation, op, err)
		case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "58"):
			return question.Wrap(question.CodeIOFailure, op, err)
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return question.Wrap(question.CodeIOFailure, op, err)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "constraint failed"),
		strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "foreign key"):
		return question.Wrap(question.CodeConstraintViolation, op, err)
	case strings.Contains(msg, "disk i/o"),
		strings.Contains(msg, "readonly database"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database is closed"):
		return question.Wrap(question.CodeIOFailure, op, err)
	default:
		return question.Wrap(question.CodeInternal, op, err)
	}
}
