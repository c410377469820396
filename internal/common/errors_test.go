package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("consume: %w", InsufficientStock(2, 5))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}

func TestAppError_UnwrapsCause(t *testing.T) {
	cause := errors.New("serialization failure")
	err := Conflict(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "serialization failure")
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorKind]int{
		KindNotFound:            http.StatusNotFound,
		KindValidation:          http.StatusBadRequest,
		KindInvalidState:        http.StatusConflict,
		KindInsufficientStock:   http.StatusConflict,
		KindDuplicateIdentifier: http.StatusConflict,
		KindAlreadyAssigned:     http.StatusConflict,
		KindConflict:            http.StatusServiceUnavailable,
		ErrorKind("other"):      http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, HTTPStatus(kind), string(kind))
	}
}

func TestSendAppError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, SendAppError(c, NotFound("item", uuid.New())))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, SendAppError(c, errors.New("db down")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestValidateUUID(t *testing.T) {
	id := uuid.New()

	got, err := ValidateUUID(" "+id.String()+" ", "item_id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ValidateUUID("", "item_id")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateUUID("not-a-uuid", "item_id")
	assert.ErrorIs(t, err, ErrValidation)

	opt, err := OptionalUUID("", "location_id")
	require.NoError(t, err)
	assert.Nil(t, opt)
}

func TestActorFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ActorFromContext(req.Context()))

	actor := uuid.New()
	ctx := WithActor(req.Context(), actor, "STAFF")
	got := ActorFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, actor, *got)

	role, ok := RoleFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "STAFF", role)
}
