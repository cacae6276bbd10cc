package handlers

import (
	"errors"
	"net/http"
	"strings"

	"vocabapp/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// httpError maps service errors onto responses. Rejections keep a fixed
// message; internal failures are logged and reported without detail.
func httpError(logger *zap.Logger, operation string, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	case errors.Is(err, services.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, detail(err, services.ErrValidation))
	case errors.Is(err, services.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, detail(err, services.ErrConflict))
	case errors.Is(err, services.ErrRevocationUnavailable):
		logger.Error(operation+" failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication temporarily unavailable")
	default:
		logger.Error(operation+" failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

// detail strips the sentinel prefix from "sentinel: detail" messages.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}
