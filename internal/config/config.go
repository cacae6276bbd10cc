// Package config loads and validates service configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RedisAddr accepts host:port or a redis:// / rediss:// URL.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// AppID is the iss claim of every token.
	AppID string `mapstructure:"APP_ID"`
	// AppDomain is the default aud claim; origins on this domain or its subdomains are accepted as audience.
	AppDomain string `mapstructure:"APP_DOMAIN"`

	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`

	// RevocationLookupTimeout bounds every revocation cache read. A timeout rejects the token.
	RevocationLookupTimeout time.Duration `mapstructure:"REVOCATION_LOOKUP_TIMEOUT"`

	CookieHashKey string `mapstructure:"COOKIE_HASH_KEY"`
	CookieSecure  bool   `mapstructure:"COOKIE_SECURE"`
	CookieDomain  string `mapstructure:"COOKIE_DOMAIN"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
	SessionRetention     time.Duration `mapstructure:"SESSION_RETENTION"`

	Env string `mapstructure:"APP_ENV"`
}

const minSecretLength = 32

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL, for commands that never start the server.
func LoadDatabaseURL() (string, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	dsn := v.GetString("DATABASE_URL")
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL must be set")
	}
	return dsn, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("APP_ID", "vocabapp-auth")
	v.SetDefault("APP_DOMAIN", "vocabapp.local")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REVOCATION_LOOKUP_TIMEOUT", "250ms")
	v.SetDefault("COOKIE_HASH_KEY", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "15m")
	v.SetDefault("SESSION_RETENTION", "720h")
	v.SetDefault("APP_ENV", "development")
}

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if c.AppID == "" || c.AppDomain == "" {
		return errors.New("config: APP_ID and APP_DOMAIN must be set")
	}
	if len(c.JWTAccessSecret) < minSecretLength || len(c.JWTRefreshSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if len(c.CookieHashKey) < minSecretLength {
		return fmt.Errorf("config: COOKIE_HASH_KEY must be at least %d bytes", minSecretLength)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.New("config: ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.RevocationLookupTimeout <= 0 {
		return errors.New("config: REVOCATION_LOOKUP_TIMEOUT must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return errors.New("config: SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// RedisHostPort strips a redis:// or rediss:// scheme from RedisAddr.
func (c *Config) RedisHostPort() string {
	addr := strings.TrimPrefix(c.RedisAddr, "redis://")
	return strings.TrimPrefix(addr, "rediss://")
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
