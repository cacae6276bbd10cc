package middleware

import (
	"context"
	"errors"
	"net/http"

	"vocabapp/internal/common"
	"vocabapp/internal/services"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer access token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*common.AuthContext, error)
}

const authContextKey = "auth"

// AccessGuard rejects requests without a live access token and attaches the
// caller's AuthContext to the ones it lets through.
type AccessGuard struct {
	auth   Authenticator
	logger *zap.Logger
}

func NewAccessGuard(auth Authenticator, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{auth: auth, logger: logger.Named("guard")}
}

func (g *AccessGuard) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:Authorization:Bearer ",
		ContextKey:  authContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return g.auth.Authenticate(c.Request().Context(), auth)
		},
		SuccessHandler: func(c echo.Context) {
			if auth, ok := c.Get(authContextKey).(*common.AuthContext); ok {
				c.SetRequest(c.Request().WithContext(common.WithAuthContext(c.Request().Context(), auth)))
			}
		},
		ErrorHandler: g.handleError,
	})
}

func (g *AccessGuard) handleError(c echo.Context, err error) error {
	var parseErr *echojwt.TokenParsingError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrRevocationUnavailable):
		g.logger.Error("rejecting request, revocation cache unavailable", zap.String("path", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication temporarily unavailable")
	case errors.As(err, &parseErr):
		// Authenticate failed for a reason other than a bad token
		g.logger.Error("access guard failure", zap.String("path", c.Path()), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	default:
		// missing or malformed Authorization header
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
}
