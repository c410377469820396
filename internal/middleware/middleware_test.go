package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/config"
	"fleetstock/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, role string, expiresIn time.Duration) string {
	claims := &ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// newProtectedEcho mounts a handler echoing the actor behind auth and role checks
func newProtectedEcho(t *testing.T) *echo.Echo {
	auth, stop, err := JWTAuth(config.AuthConfig{JWTSecret: testSecret}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(stop)

	e := echo.New()
	g := e.Group("/v1", auth, RequireRole(InventoryRoles...))
	g.GET("/whoami", func(c echo.Context) error {
		actor := common.ActorFromContext(c.Request().Context())
		role, _ := common.RoleFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{"actor": actor.String(), "role": role})
	})
	return e
}

func get(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth_SetsActor(t *testing.T) {
	e := newProtectedEcho(t)
	actorID := uuid.New()

	rec := get(e, "/v1/whoami", signToken(t, actorID.String(), RoleStaff, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), actorID.String())
	assert.Contains(t, rec.Body.String(), RoleStaff)
}

func TestJWTAuth_RejectsBadTokens(t *testing.T) {
	e := newProtectedEcho(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
		{"expired", signToken(t, uuid.NewString(), RoleAdmin, -time.Minute)},
		{"non-uuid subject", signToken(t, "driver-42", RoleAdmin, time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(e, "/v1/whoami", tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := newProtectedEcho(t)

	rec := get(e, "/v1/whoami", signToken(t, uuid.NewString(), "DRIVER", time.Hour))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, role := range InventoryRoles {
		rec := get(e, "/v1/whoami", signToken(t, uuid.NewString(), role, time.Hour))
		assert.Equal(t, http.StatusOK, rec.Code, role)
	}
}

// claimCache implements caching.CacheService with an in-process key set
type claimCache struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (c *claimCache) GetStockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, int64, error) {
	return nil, 0, nil
}

func (c *claimCache) SetStockLevel(ctx context.Context, level *models.StockLevel, generation int64, ttl time.Duration) error {
	return nil
}

func (c *claimCache) DeleteStockLevels(ctx context.Context, keys ...models.StockKey) error {
	return nil
}

func (c *claimCache) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed == nil {
		c.claimed = make(map[string]bool)
	}
	k := scope + "|" + key
	if c.claimed[k] {
		return false, nil
	}
	c.claimed[k] = true
	return true, nil
}

func (c *claimCache) ReleaseIdempotencyKey(ctx context.Context, scope, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, scope+"|"+key)
	return nil
}

func (c *claimCache) Ping(ctx context.Context) error {
	return c.err
}

func TestIdempotency(t *testing.T) {
	cache := &claimCache{}
	calls := 0
	e := echo.New()
	e.Use(Idempotency(cache, zap.NewNop()))
	e.POST("/v1/inventory/receive", func(c echo.Context) error {
		calls++
		return c.NoContent(http.StatusCreated)
	})
	e.GET("/v1/inventory/stocks", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/inventory/receive", nil)
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, post("receipt-1").Code)
	replay := post("receipt-1")
	assert.Equal(t, http.StatusConflict, replay.Code)
	assert.Contains(t, replay.Body.String(), "DUPLICATE_REQUEST")
	assert.Equal(t, http.StatusCreated, post("receipt-2").Code)
	assert.Equal(t, http.StatusCreated, post("").Code)
	assert.Equal(t, http.StatusCreated, post("").Code)
	assert.Equal(t, 4, calls)

	req := httptest.NewRequest(http.MethodGet, "/v1/inventory/stocks", nil)
	req.Header.Set(IdempotencyHeader, "receipt-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	cache.err = errors.New("redis down")
	assert.Equal(t, http.StatusCreated, post("receipt-1").Code)
}

func TestVersionMiddleware(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	e.Use(vm.APIVersionResolver())
	vm.VersionRoute(e, "v1").GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := get(e, "/v1/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	rec = get(e, "/v2/ping", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_VERSION")
}

func TestIdempotency_FailedAttemptCanBeRetried(t *testing.T) {
	cache := &claimCache{}
	calls := 0
	e := echo.New()
	e.Use(Idempotency(cache, zap.NewNop()))
	e.POST("/v1/inventory/consume", func(c echo.Context) error {
		calls++
		switch calls {
		case 1:
			return common.Conflict(errors.New("lock timeout"))
		case 2:
			return common.SendAppError(c, common.InsufficientStock(2, 5))
		}
		return c.NoContent(http.StatusCreated)
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/inventory/consume", nil)
		req.Header.Set(IdempotencyHeader, "consume-1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.GreaterOrEqual(t, post().Code, http.StatusBadRequest)
	assert.Equal(t, http.StatusConflict, post().Code)
	assert.Equal(t, http.StatusCreated, post().Code)
	assert.Equal(t, 3, calls)

	replay := post()
	assert.Equal(t, http.StatusConflict, replay.Code)
	assert.Contains(t, replay.Body.String(), "DUPLICATE_REQUEST")
	assert.Equal(t, 3, calls)
}
