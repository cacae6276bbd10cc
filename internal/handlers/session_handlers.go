package handlers

import (
	"net/http"
	"time"

	"vocabapp/internal/common"
	"vocabapp/internal/models"
	"vocabapp/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionHandlers serves the endpoints behind the access guard.
type SessionHandlers struct {
	authService services.AuthService
	cookie      *RefreshCookie
	logger      *zap.Logger
}

func NewSessionHandlers(authService services.AuthService, cookie *RefreshCookie, logger *zap.Logger) *SessionHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandlers{authService: authService, cookie: cookie, logger: logger.Named("session_handlers")}
}

type MeResponse struct {
	User      models.UserProfile `json:"user"`
	Username  string             `json:"username"`
	Email     string             `json:"email"`
	Role      string             `json:"role"`
	TenantID  string             `json:"tenantId"`
	SessionID string             `json:"sessionId"`
}

type SessionResponse struct {
	ID             string    `json:"id"`
	DeviceType     string    `json:"deviceType"`
	UserAgent      string    `json:"userAgent"`
	IP             string    `json:"ip"`
	Location       string    `json:"location,omitempty"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
	Current        bool      `json:"current"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *SessionHandlers) Me(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	return c.JSON(http.StatusOK, MeResponse{
		User:      models.UserProfile{ID: auth.User.ID, Name: auth.User.Name},
		Username:  auth.Account.Username,
		Email:     auth.Account.Email,
		Role:      auth.User.Role,
		TenantID:  auth.Tenant.ID.String(),
		SessionID: auth.Session.ID.String(),
	})
}

func (h *SessionHandlers) ListSessions(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	sessions, err := h.authService.ListSessions(c.Request().Context(), auth.Account)
	if err != nil {
		return httpError(h.logger, "list sessions", err)
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:             s.ID.String(),
			DeviceType:     s.Metadata.DeviceType,
			UserAgent:      s.Metadata.UserAgent,
			IP:             s.Metadata.IP,
			Location:       s.Metadata.Location,
			LastAccessedAt: s.LastAccessedAt,
			ExpiresAt:      s.ExpiresAt,
			CreatedAt:      s.CreatedAt,
			Current:        s.ID == auth.Session.ID,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": out})
}

func (h *SessionHandlers) RevokeSession(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	sessionID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.authService.RevokeSession(c.Request().Context(), auth.Account, sessionID); err != nil {
		return httpError(h.logger, "revoke session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandlers) LogoutAll(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if err := h.authService.LogoutAll(c.Request().Context(), auth.Account); err != nil {
		return httpError(h.logger, "logout all", err)
	}
	h.cookie.Clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandlers) ChangePassword(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.authService.ChangePassword(c.Request().Context(), auth.Account, req.CurrentPassword, req.NewPassword); err != nil {
		return httpError(h.logger, "change password", err)
	}
	h.cookie.Clear(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandlers) DisableAccount(c echo.Context) error {
	auth, ok := common.AuthFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	accountID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.authService.DisableAccount(c.Request().Context(), auth.User, accountID); err != nil {
		return httpError(h.logger, "disable account", err)
	}
	return c.NoContent(http.StatusNoContent)
}
