package middleware

import (
	"net/http"
	"slices"

	"fleetstock/internal/common"

	"github.com/labstack/echo/v4"
)

const (
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// InventoryRoles may read and move stock
var InventoryRoles = []string{RoleOwner, RoleAdmin, RoleStaff}

// RequireRole allows the request through only when the authenticated actor
// holds one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if common.ActorFromContext(ctx) == nil {
				return common.SendUnauthorizedError(c)
			}
			role, _ := common.RoleFromContext(ctx)
			if !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
			}
			return next(c)
		}
	}
}
