package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ActorIDKey contextKey = "actor_id"
	RoleKey    contextKey = "role"
)

// WithActor stores the authenticated actor on the context
func WithActor(ctx context.Context, actorID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, ActorIDKey, actorID)
	return context.WithValue(ctx, RoleKey, role)
}

// ActorFromContext returns the actor recorded on movements and assignments.
// Calls made outside an authenticated request have no actor.
func ActorFromContext(ctx context.Context) *uuid.UUID {
	actorID, ok := ctx.Value(ActorIDKey).(uuid.UUID)
	if !ok || actorID == uuid.Nil {
		return nil
	}
	return &actorID
}

func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse(string(KindValidation), "Validation failed", details))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendAppError writes a typed failure with the status for its kind.
// Untyped errors are reported as a generic server error.
func SendAppError(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return SendServerError(c, "Internal server error")
	}
	return c.JSON(HTTPStatus(appErr.Kind), CreateErrorResponse(string(appErr.Kind), appErr.Message, appErr.Details))
}

// ValidateUUID parses a path or query identifier
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, Validation(fieldName, fmt.Sprintf("%s is required", fieldName))
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, Validation(fieldName, fmt.Sprintf("%s must be a valid UUID", fieldName))
	}
	return id, nil
}

// OptionalUUID parses an identifier that may be absent
func OptionalUUID(idStr string, fieldName string) (*uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return nil, nil
	}
	id, err := ValidateUUID(idStr, fieldName)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
