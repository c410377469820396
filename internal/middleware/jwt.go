package middleware

import (
	"errors"
	"fmt"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/config"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ActorClaims is the token payload. Subject carries the actor id recorded on
// movements and assignments.
type ActorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Validate rejects tokens whose subject is not an actor id. jwt/v5 calls it
// after the registered claims have been checked.
func (c *ActorClaims) Validate() error {
	if _, err := uuid.Parse(c.Subject); err != nil {
		return errors.New("subject must be a uuid")
	}
	return nil
}

// JWTAuth validates bearer tokens either against a shared HMAC secret or,
// when JWKSURL is set, against a remote key set. The returned stop func
// ends the key set refresh goroutine.
func JWTAuth(cfg config.AuthConfig, logger *zap.Logger) (echo.MiddlewareFunc, func(), error) {
	jwtConfig := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(ActorClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*ActorClaims)
			if !ok {
				return
			}
			actorID, _ := uuid.Parse(claims.Subject)
			ctx := common.WithActor(c.Request().Context(), actorID, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logger.Debug("token rejected", zap.Error(err))
			return common.SendUnauthorizedError(c)
		},
	}

	stop := func() {}
	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				logger.Warn("failed to refresh JWKS", zap.Error(err))
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load JWKS: %w", err)
		}
		jwtConfig.KeyFunc = jwks.Keyfunc
		stop = jwks.EndBackground
	} else {
		jwtConfig.SigningKey = []byte(cfg.JWTSecret)
	}

	return echojwt.WithConfig(jwtConfig), stop, nil
}
