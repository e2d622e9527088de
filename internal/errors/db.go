package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column from a unique violation detail: "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps database errors to AppError instances:
// - sql.ErrNoRows / pgx.ErrNoRows → NotFound
// - unique violations → Conflict (with Field when it can be determined)
// - foreign key violations → ForeignKey
// - check / NOT NULL violations → Validation
// - context deadline / cancellation → Timeout / Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "request was canceled")
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return Wrap(err, ErrCodeNotFound, "resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "value already exists",
			Field:   uniqueViolationField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return Wrap(pgErr, ErrCodeForeignKey, "referenced record is missing or still in use")
	case pgerrcode.CheckViolation:
		return &AppError{Code: ErrCodeValidation, Message: "value is not allowed", Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "field is required", Field: pgErr.ColumnName, Cause: pgErr}
	default:
		return Wrap(pgErr, ErrCodeInternal, "database error")
	}
}

// uniqueViolationField prefers ColumnName, then the Detail message, then the
// constraint name ("users_external_id_key" → "external_id").
func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
}

func inferFieldFromConstraint(table, constraint string) string {
	if constraint == "" {
		return ""
	}
	name := constraint
	for _, suffix := range []string{"_key", "_unique", "_idx"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok {
			name = trimmed
			break
		}
	}
	if table != "" {
		if trimmed, ok := strings.CutPrefix(name, table+"_"); ok {
			return trimmed
		}
	}
	if _, rest, ok := strings.Cut(name, "_"); ok {
		return rest
	}
	return ""
}
