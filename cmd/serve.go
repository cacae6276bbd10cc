package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vocabapp/internal/caching"
	"vocabapp/internal/config"
	"vocabapp/internal/handlers"
	"vocabapp/internal/jobs"
	"vocabapp/internal/jobs/background"
	"vocabapp/internal/logging"
	"vocabapp/internal/metrics"
	"vocabapp/internal/middleware"
	"vocabapp/internal/repositories"
	"vocabapp/internal/services"
	"vocabapp/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "vocabapp-auth")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{ConnectTimeout: 5 * time.Second}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := caching.NewRedisClient(cfg.RedisHostPort(), cfg.RedisPassword, cfg.RedisDB, logger)
	defer func() { _ = redisClient.Close() }()
	revocations := caching.NewRedisRevocationCache(redisClient, cfg.RevocationLookupTimeout, time.Now)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics := metrics.NewAuthMetrics(reg)

	sessionRepo := repositories.NewSessionRepo(pool)
	tokens := services.NewTokenService(services.TokenConfig{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.AppID,
		Domain:        cfg.AppDomain,
	}, time.Now)

	authService := services.NewAuthService(services.AuthDependencies{
		Accounts:    repositories.NewAccountRepo(pool),
		Users:       repositories.NewUserRepo(pool),
		Tenants:     repositories.NewTenantRepo(pool),
		Sessions:    sessionRepo,
		Revocations: revocations,
		Tokens:      tokens,
		Hasher:      services.NewHasher(cfg.BcryptCost),
		Metrics:     authMetrics,
		Logger:      logger,
	})

	cookie := handlers.NewRefreshCookie([]byte(cfg.CookieHashKey), cfg.CookieSecure, cfg.CookieDomain, cfg.RefreshTokenTTL)
	e := handlers.NewRouter(handlers.RouterConfig{
		Auth:     handlers.NewAuthHandlers(authService, cookie, logger),
		Sessions: handlers.NewSessionHandlers(authService, cookie, logger),
		Health: handlers.NewHealthHandlers(map[string]handlers.Pinger{
			"database": sessionRepo,
			"redis":    revocations,
		}, version),
		Guard:       middleware.NewAccessGuard(authService, logger),
		Logger:      logger,
		Gatherer:    reg,
		AllowOrigin: originAllowed(tokens),
	})

	scheduler, err := background.NewJobScheduler(logger)
	if err != nil {
		return err
	}
	sweeper := jobs.NewSessionSweeper(sessionRepo, authMetrics, logger, cfg.SessionRetention, time.Now)
	if err := scheduler.AddJob("session-sweep", cfg.SessionSweepInterval, sweeper.ScheduledSweep); err != nil {
		return err
	}
	scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr), zap.String("version", version))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// originAllowed admits CORS origins whose host the token service accepts as an audience.
func originAllowed(tokens services.TokenService) func(string) (bool, error) {
	return func(origin string) (bool, error) {
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			return false, nil
		}
		return strings.EqualFold(tokens.Audience(origin), u.Hostname()), nil
	}
}
