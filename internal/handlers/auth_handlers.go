package handlers

import (
	"net/http"
	"strings"

	"vocabapp/internal/models"
	"vocabapp/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandlers serves the public token endpoints.
type AuthHandlers struct {
	authService services.AuthService
	cookie      *RefreshCookie
	logger      *zap.Logger
}

func NewAuthHandlers(authService services.AuthService, cookie *RefreshCookie, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{authService: authService, cookie: cookie, logger: logger.Named("auth_handlers")}
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         models.UserProfile `json:"user"`
}

// RefreshRequest is accepted by refresh and logout; the cookie is used when the body is empty.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandlers) Register(c echo.Context) error {
	var req services.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	profile, err := h.authService.Register(c.Request().Context(), &req)
	if err != nil {
		return httpError(h.logger, "register", err)
	}
	return c.JSON(http.StatusCreated, profile)
}

// Login handles login with email or username and password
func (h *AuthHandlers) Login(c echo.Context) error {
	var req services.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if strings.TrimSpace(req.EmailOrUsername) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "emailOrUsername and password are required")
	}

	result, err := h.authService.Login(c.Request().Context(), &req, deviceInfo(c), origin(c))
	if err != nil {
		return httpError(h.logger, "login", err)
	}

	if err := h.cookie.Set(c, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt); err != nil {
		return httpError(h.logger, "login", err)
	}
	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         result.User,
	})
}

func (h *AuthHandlers) Refresh(c echo.Context) error {
	token := h.presentedRefreshToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	pair, err := h.authService.Refresh(c.Request().Context(), token, origin(c))
	if err != nil {
		return httpError(h.logger, "refresh", err)
	}

	if err := h.cookie.Set(c, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return httpError(h.logger, "refresh", err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandlers) Logout(c echo.Context) error {
	token := h.presentedRefreshToken(c)
	// cleared on every outcome; a rejected token is of no further use to the client
	h.cookie.Clear(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	if err := h.authService.Logout(c.Request().Context(), token); err != nil {
		return httpError(h.logger, "logout", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandlers) presentedRefreshToken(c echo.Context) string {
	var req RefreshRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return ""
		}
	}
	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		return token
	}
	return h.cookie.Read(c)
}

func deviceInfo(c echo.Context) models.DeviceInfo {
	ua := c.Request().UserAgent()
	return models.DeviceInfo{
		IP:         c.RealIP(),
		UserAgent:  ua,
		DeviceType: deviceType(ua),
		Location:   c.Request().Header.Get("X-Client-Location"),
	}
}

func deviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func origin(c echo.Context) string {
	return c.Request().Header.Get(echo.HeaderOrigin)
}
