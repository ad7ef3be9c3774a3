// Package config handles configuration for the session service. All settings
// come from the environment and are read once at startup; the resulting Config
// is passed by reference and never mutated afterwards.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// DatabaseSettings holds connection strings for the backing stores.
type DatabaseSettings struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisDSN    string `env:"REDIS_DSN,required,notEmpty"`
}

// SecuritySettings holds token signing and lifetime settings.
//
// JWTAlgorithm must be one of the HMAC-SHA variants (HS256, HS384, HS512).
// RefreshTokenExpireDays is bounded to 0–15 days.
type SecuritySettings struct {
	SecretKey                string `env:"SECRET_KEY,required,notEmpty"`
	JWTAlgorithm             string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"1"`
}

// AccessTokenTTL returns the configured access-token lifetime.
func (s SecuritySettings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh-token lifetime.
func (s SecuritySettings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.RefreshTokenExpireDays) * 24 * time.Hour
}

// ServerSettings holds the HTTP bind address.
type ServerSettings struct {
	Host string `env:"HOST" envDefault:"127.0.0.1"`
	Port int    `env:"PORT" envDefault:"8088"`
}

// Addr returns the host:port string the HTTP server listens on.
func (s ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UsersSettings holds user-related defaults.
type UsersSettings struct {
	// DefaultUserID is recorded as created_by on rows created by the
	// system itself rather than an authenticated caller.
	DefaultUserID string `env:"DEFAULT_USER_ID,required,notEmpty"`
}

// Config is the process-wide configuration.
type Config struct {
	Database DatabaseSettings `envPrefix:"DB_"`
	Security SecuritySettings `envPrefix:"SECURITY_"`
	Server   ServerSettings   `envPrefix:"SERVER_"`
	Users    UsersSettings    `envPrefix:"USERS_"`
}

var jwtAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Load parses configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !jwtAlgorithms[c.Security.JWTAlgorithm] {
		return fmt.Errorf("unsupported jwt algorithm: %q", c.Security.JWTAlgorithm)
	}
	if c.Security.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("access token expiry must be positive, got %d", c.Security.AccessTokenExpireMinutes)
	}
	if d := c.Security.RefreshTokenExpireDays; d < 0 || d > 15 {
		return fmt.Errorf("refresh token expiry must be within 0-15 days, got %d", d)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}
