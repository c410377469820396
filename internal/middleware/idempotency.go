package middleware

import (
	"context"
	"net/http"
	"strings"

	"fleetstock/internal/caching"
	"fleetstock/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// Idempotency rejects a replayed mutating request that carries an
// Idempotency-Key already seen for the same actor and route. Requests
// without the header pass through. If the cache is unreachable the request
// proceeds and the miss is logged.
//
// A claim only sticks when the handler succeeds. A failed attempt (an error
// or a 4xx/5xx response) applied nothing, so its key is released and the
// client may retry with it.
func Idempotency(cache caching.CacheService, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			method := c.Request().Method
			if method != http.MethodPost && method != http.MethodPatch {
				return next(c)
			}
			key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
			if key == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			actor := "anonymous"
			if actorID := common.ActorFromContext(ctx); actorID != nil {
				actor = actorID.String()
			}
			scope := actor + ":" + method + ":" + c.Request().URL.Path

			first, err := cache.ClaimIdempotencyKey(ctx, scope, key, caching.IdempotencyTTL)
			if err != nil {
				logger.Warn("idempotency check unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if !first {
				return c.JSON(http.StatusConflict, common.CreateErrorResponse("DUPLICATE_REQUEST",
					"A request with this Idempotency-Key was already processed", map[string]string{"idempotency_key": key}))
			}

			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				if relErr := cache.ReleaseIdempotencyKey(context.WithoutCancel(ctx), scope, key); relErr != nil {
					logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
				}
			}
			return err
		}
	}
}
