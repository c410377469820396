package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorKind classifies every failure the inventory core reports to callers.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindInsufficientStock   ErrorKind = "INSUFFICIENT_STOCK"
	KindDuplicateIdentifier ErrorKind = "DUPLICATE_IDENTIFIER"
	KindAlreadyAssigned     ErrorKind = "ALREADY_ASSIGNED"
	KindConflict            ErrorKind = "CONFLICT"
)

// AppError is a typed, expected failure. It never indicates partial state:
// the unit of work that produced it has been rolled back.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, common.ErrInsufficientStock).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrNotFound            = &AppError{Kind: KindNotFound}
	ErrValidation          = &AppError{Kind: KindValidation}
	ErrInvalidState        = &AppError{Kind: KindInvalidState}
	ErrInsufficientStock   = &AppError{Kind: KindInsufficientStock}
	ErrDuplicateIdentifier = &AppError{Kind: KindDuplicateIdentifier}
	ErrAlreadyAssigned     = &AppError{Kind: KindAlreadyAssigned}
	ErrConflict            = &AppError{Kind: KindConflict}
)

func NotFound(resource string, id uuid.UUID) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id.String()},
	}
}

func Validation(field, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Details: map[string]string{field: message},
	}
}

func InvalidState(message string) *AppError {
	return &AppError{Kind: KindInvalidState, Message: message}
}

func InsufficientStock(available, requested int) *AppError {
	return &AppError{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("insufficient stock: available %d, requested %d", available, requested),
		Details: map[string]string{
			"available": fmt.Sprint(available),
			"requested": fmt.Sprint(requested),
		},
	}
}

func DuplicateIdentifier(field, value string) *AppError {
	return &AppError{
		Kind:    KindDuplicateIdentifier,
		Message: fmt.Sprintf("%s %q already exists", field, value),
		Details: map[string]string{field: value},
	}
}

func AlreadyAssigned(unitID uuid.UUID) *AppError {
	return &AppError{
		Kind:    KindAlreadyAssigned,
		Message: "unit already has an open assignment",
		Details: map[string]string{"stock_unit_id": unitID.String()},
	}
}

func Conflict(err error) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Message: "operation conflicted with a concurrent update, retry later",
		Err:     err,
	}
}

// KindOf returns the kind of err, or "" when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// HTTPStatus maps an error kind to the response status used by the handlers.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState, KindInsufficientStock, KindDuplicateIdentifier, KindAlreadyAssigned:
		return http.StatusConflict
	case KindConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
