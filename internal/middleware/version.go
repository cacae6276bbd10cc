package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIVersion is reported on every response in X-API-Version.
const APIVersion = "v1"

// VersionHeader adds the API version to responses.
func VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", version)
			return next(c)
		}
	}
}

// NoStore keeps intermediaries and browsers from caching responses that carry tokens.
func NoStore() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderCacheControl, "no-store")
			h.Set("Pragma", "no-cache")
			return next(c)
		}
	}
}
