package middleware

import (
	"net/http"

	"vocabapp/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireRole lets the request through only when the authenticated user has
// one of roles. It must run after the access guard.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth, ok := common.AuthFromContext(c.Request().Context())
			if !ok || auth.User == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if !allowed[auth.User.Role] {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
