package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-bookswap/core"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isUniqueViolation matches pq errors by SQLSTATE and sqlite errors by message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

// isRetryableTxError reports contention that a fresh transaction attempt can
// resolve: lost optimistic writes, serialization failures and busy locks.
func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, core.ErrStaleWrite) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pgSerializationFailure || code == pgDeadlockDetected
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database table is locked") ||
		strings.Contains(message, "sqlite_busy")
}

func txErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, core.ErrStaleWrite):
		return "stale_write"
	case isRetryableTxError(err):
		return "contention"
	default:
		return "other"
	}
}
