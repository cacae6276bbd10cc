package middleware

import (
	"net/http"

	"vocabapp/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditMiddleware writes one audit log line for every state-changing request
// made by an authenticated caller.
type AuditMiddleware struct {
	logger *zap.Logger
}

func NewAuditMiddleware(logger *zap.Logger) *AuditMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditMiddleware{logger: logger.Named("audit")}
}

func (m *AuditMiddleware) AuditRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			method := c.Request().Method
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return err
			}
			auth, ok := common.AuthFromContext(c.Request().Context())
			if !ok {
				return err
			}

			fields := []zap.Field{
				zap.String("action", method+" "+c.Path()),
				zap.String("tenant_id", auth.Tenant.ID.String()),
				zap.String("account_id", auth.Account.ID.String()),
				zap.String("session_id", auth.Session.ID.String()),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", c.Request().UserAgent()),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			m.logger.Info("audit", fields...)
			return err
		}
	}
}
