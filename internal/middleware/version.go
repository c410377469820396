package middleware

import (
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"fleetstock/internal/common"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one mounted API version
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active" or "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

var versionPrefix = regexp.MustCompile(`^/(v[0-9]+)(/|$)`)

// VersionMiddleware stamps responses with the API version and rejects
// unknown version prefixes.
type VersionMiddleware struct {
	versions map[string]APIVersion
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active"},
		},
	}
}

// VersionRoute creates a version group whose responses carry X-API-Version
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(vm.VersionHeader(version))
	return group
}

func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if ver, ok := vm.versions[version]; ok && ver.Status == "deprecated" {
				h.Set("X-API-Deprecated", "true")
				if ver.SunsetDate != nil {
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
				}
			}
			return next(c)
		}
	}
}

// APIVersionResolver answers 404 for a /vN prefix that is not mounted
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := versionPrefix.FindStringSubmatch(c.Request().URL.Path)
			if m == nil {
				return next(c)
			}
			if _, ok := vm.versions[m[1]]; !ok {
				return c.JSON(http.StatusNotFound, common.CreateErrorResponse("UNSUPPORTED_VERSION", "Unsupported API version",
					map[string]string{"supported_versions": vm.supported()}))
			}
			c.Set("api_version", m[1])
			return next(c)
		}
	}
}

func (vm *VersionMiddleware) supported() string {
	versions := make([]string, 0, len(vm.versions))
	for v := range vm.versions {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return strings.Join(versions, ", ")
}
