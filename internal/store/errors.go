package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsNumericTypeError reports whether a write failed because a numeric value
// did not fit the column type (e.g. a float sent to an integer column, as in
// deployments where score columns are integer-typed). The persistence writer
// retries exactly once with coerced values on this class of failure.
func IsNumericTypeError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", // invalid_text_representation
			"42804", // datatype_mismatch
			"22003": // numeric_value_out_of_range
			return true
		}
	}

	// Driver-agnostic fallback for wrapped/sqlite errors.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"invalid input syntax for type integer",
		"invalid input syntax for type numeric",
		"datatype mismatch",
		"cannot convert",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether an insert hit the featured_date
// uniqueness constraint. This is the benign outcome of two concurrent runs
// passing the advisory existence check for the same date.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
