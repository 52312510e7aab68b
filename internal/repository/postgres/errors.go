package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation.
// If constraint is empty, it returns true for any unique violation;
// otherwise only for that specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return isPqViolation(err, pqUniqueViolation, constraint)
}

// IsForeignKeyViolation checks if an error is a PostgreSQL foreign key
// violation, optionally for a specific constraint.
func IsForeignKeyViolation(err error, constraint string) bool {
	return isPqViolation(err, pqForeignKeyViolation, constraint)
}

func isPqViolation(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	if string(pqErr.Code) != code {
		return false
	}

	if constraint == "" {
		return true
	}

	return pqErr.Constraint == constraint
}
