package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jordansmalls/cs/internal/domain"
)

// Error handling utilities for SQLite.

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// SQLite unique constraint error message
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed: UNIQUE")
}

// duplicateField maps a unique violation to the identity field it names.
// SQLite reports the column as "users.<column>".
func duplicateField(err error) string {
	if strings.Contains(err.Error(), "users.email") {
		return domain.FieldEmail
	}
	return domain.FieldUsername
}

// mapWriteError converts a unique violation into a domain duplicate error.
func mapWriteError(err error) error {
	return domain.NewDuplicateFieldError(duplicateField(err), err)
}

// isNoRows checks if an error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
