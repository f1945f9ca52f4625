package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorNotFound          = "BOOKSWAP_NOT_FOUND"
	ErrorUnauthorized      = "BOOKSWAP_UNAUTHORIZED"
	ErrorValidation        = "BOOKSWAP_VALIDATION_FAILED"
	ErrorConflict          = "BOOKSWAP_CONFLICT"
	ErrorInvalidTransition = "BOOKSWAP_INVALID_TRANSITION"
	ErrorInternal          = "BOOKSWAP_INTERNAL_ERROR"
)

// Storage sentinels. Stores wrap these with %w; the service maps them onto the
// caller-facing error kinds.
var (
	ErrUserNotFound     = errors.New("core: user not found")
	ErrBookNotFound     = errors.New("core: book not found")
	ErrMatchNotFound    = errors.New("core: match not found")
	ErrExchangeNotFound = errors.New("core: exchange not found")
	ErrDuplicateMatch   = errors.New("core: active match already exists")
	ErrMatchInactive    = errors.New("core: match is no longer active")
	ErrStaleWrite       = errors.New("core: stale write")
)

func NotFoundError(entity string, id any) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s %v not found", entity, id), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorNotFound).
		WithMetadata(map[string]any{"entity": entity, "id": id})
}

func UnauthorizedError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(ErrorUnauthorized)
}

func ValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("bookswap: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func ConflictError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorConflict)
}

func InvalidTransitionError(status ExchangeStatus, action ExchangeAction) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("cannot %s an exchange in status %s", action, status),
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidTransition).
		WithMetadata(map[string]any{"status": string(status), "action": string(action)})
}

// KindOf returns the text code of a caller-facing error, or ErrorInternal for
// anything outside the taxonomy.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		if code := strings.TrimSpace(rich.TextCode); code != "" {
			return code
		}
	}
	return ErrorInternal
}

func IsNotFound(err error) bool { return KindOf(err) == ErrorNotFound }

func IsUnauthorized(err error) bool { return KindOf(err) == ErrorUnauthorized }

func IsValidation(err error) bool { return KindOf(err) == ErrorValidation }

func IsConflict(err error) bool { return KindOf(err) == ErrorConflict }

func IsInvalidTransition(err error) bool { return KindOf(err) == ErrorInvalidTransition }

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return NotFoundError("user", "")
	case errors.Is(err, ErrBookNotFound):
		return NotFoundError("book", "")
	case errors.Is(err, ErrMatchNotFound):
		return NotFoundError("match", "")
	case errors.Is(err, ErrExchangeNotFound):
		return NotFoundError("exchange", "")
	case errors.Is(err, ErrDuplicateMatch):
		return ConflictError("an active match already exists for this user and book")
	case errors.Is(err, ErrMatchInactive):
		return ConflictError("match is no longer active")
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryConflict:
		return ErrorConflict
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
