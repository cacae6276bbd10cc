package handlers

import (
	"net/http"

	"vocabapp/internal/middleware"
	"vocabapp/internal/models"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Access says whether a route needs a live access token.
type Access int

const (
	Public Access = iota
	Protected
)

// Route is one entry of the route table. Roles only applies to Protected routes.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Roles   []string
	Handler echo.HandlerFunc
}

// AuthRoutes is the route table of the auth service.
func AuthRoutes(auth *AuthHandlers, sessions *SessionHandlers) []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/auth/register", Access: Public, Handler: auth.Register},
		{Method: http.MethodPost, Path: "/auth/login", Access: Public, Handler: auth.Login},
		{Method: http.MethodPost, Path: "/auth/refresh", Access: Public, Handler: auth.Refresh},
		{Method: http.MethodPost, Path: "/auth/logout", Access: Public, Handler: auth.Logout},

		{Method: http.MethodGet, Path: "/auth/me", Access: Protected, Handler: sessions.Me},
		{Method: http.MethodGet, Path: "/auth/sessions", Access: Protected, Handler: sessions.ListSessions},
		{Method: http.MethodDelete, Path: "/auth/sessions/:id", Access: Protected, Handler: sessions.RevokeSession},
		{Method: http.MethodPost, Path: "/auth/logout-all", Access: Protected, Handler: sessions.LogoutAll},
		{Method: http.MethodPost, Path: "/auth/password", Access: Protected, Handler: sessions.ChangePassword},
		{Method: http.MethodPost, Path: "/admin/accounts/:id/disable", Access: Protected, Roles: []string{models.RoleAdmin}, Handler: sessions.DisableAccount},
	}
}

// RegisterRoutes mounts routes on e. Every route is marked no-store; Protected
// routes also get the guard, the role gate when Roles is set, and the audit log.
func RegisterRoutes(e *echo.Echo, routes []Route, guard *middleware.AccessGuard, audit *middleware.AuditMiddleware) {
	guardMW := guard.Middleware()
	auditMW := audit.AuditRequest()
	noStore := middleware.NoStore()
	for _, r := range routes {
		mws := []echo.MiddlewareFunc{noStore}
		if r.Access == Protected {
			mws = append(mws, guardMW)
			if len(r.Roles) > 0 {
				mws = append(mws, middleware.RequireRole(r.Roles...))
			}
			mws = append(mws, auditMW)
		}
		e.Add(r.Method, r.Path, r.Handler, mws...)
	}
}

// RouterConfig collects what NewRouter needs.
type RouterConfig struct {
	Auth     *AuthHandlers
	Sessions *SessionHandlers
	Health   *HealthHandlers
	Guard    *middleware.AccessGuard
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	// AllowOrigin decides CORS; nil disables CORS handling.
	AllowOrigin func(origin string) (bool, error)
}

// NewRouter builds the echo instance with the ambient middleware stack.
func NewRouter(cfg RouterConfig) *echo.Echo {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(cfg.Logger))
	e.Use(middleware.VersionHeader(middleware.APIVersion))
	if cfg.AllowOrigin != nil {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOriginFunc:  cfg.AllowOrigin,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: true,
		}))
	}

	e.GET("/health", cfg.Health.LivenessCheck)
	e.GET("/health/ready", cfg.Health.ReadinessCheck)
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(e, AuthRoutes(cfg.Auth, cfg.Sessions), cfg.Guard, middleware.NewAuditMiddleware(cfg.Logger))
	return e
}
