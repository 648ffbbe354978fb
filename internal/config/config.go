// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HMAC signing secret for access tokens. Required; its
	// absence is a startup configuration error, never a per-request one.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "staff-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "tours-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime string, units s/m/h/d (e.g. "15m", "1d").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTTL is the refresh token lifetime string (e.g. "30d").
	RefreshTTL string `mapstructure:"REFRESH_TTL"`
	// RefreshRotation enables refresh-token rotation on every refresh call.
	RefreshRotation bool `mapstructure:"REFRESH_ROTATION"`
	// LockoutThreshold is the number of consecutive failed logins that locks an account.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutDuration is how long a locked account stays locked (e.g. "2h").
	LockoutDuration string `mapstructure:"LOCKOUT_DURATION"`
	// PermissionCacheTTL bounds staleness of cached permission sets (e.g. "5m").
	PermissionCacheTTL string `mapstructure:"PERMISSION_CACHE_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Worker intervals and thresholds.
	// CleanupInterval is how often expired refresh tokens and blacklist rows are deleted.
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// PruneInterval is how often long-revoked blacklist rows are pruned.
	PruneInterval string `mapstructure:"PRUNE_INTERVAL"`
	// PruneRetention is how long revoked blacklist rows are kept before pruning (e.g. "30d").
	PruneRetention string `mapstructure:"PRUNE_RETENTION"`
	// RevokedRetention is how long revoked refresh tokens are kept before cleanup (e.g. "7d").
	RevokedRetention string `mapstructure:"REVOKED_RETENTION"`
	// AnomalyInterval is how often the anomaly scan runs.
	AnomalyInterval string `mapstructure:"ANOMALY_INTERVAL"`
	// AnomalyIPCreationThreshold flags IPs creating more refresh tokens than this within an hour.
	AnomalyIPCreationThreshold int `mapstructure:"ANOMALY_IP_CREATION_THRESHOLD"`
	// AnomalyRevocationThreshold flags principals with more security revocations than this within an hour.
	AnomalyRevocationThreshold int `mapstructure:"ANOMALY_REVOCATION_THRESHOLD"`
	// AnomalyUsageThreshold flags refresh tokens with usage counts at or above this.
	AnomalyUsageThreshold int `mapstructure:"ANOMALY_USAGE_THRESHOLD"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "staff-auth")
	v.SetDefault("JWT_AUDIENCE", "tours-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TTL", "30d")
	v.SetDefault("REFRESH_ROTATION", true)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_DURATION", "2h")
	v.SetDefault("PERMISSION_CACHE_TTL", "5m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("PRUNE_INTERVAL", "24h")
	v.SetDefault("PRUNE_RETENTION", "30d")
	v.SetDefault("REVOKED_RETENTION", "7d")
	v.SetDefault("ANOMALY_INTERVAL", "6h")
	v.SetDefault("ANOMALY_IP_CREATION_THRESHOLD", 20)
	v.SetDefault("ANOMALY_REVOCATION_THRESHOLD", 5)
	v.SetDefault("ANOMALY_USAGE_THRESHOLD", 1000)
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LockoutThreshold <= 0 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}

	return &cfg, nil
}

// ParseLifetime parses a lifetime string with units s/m/h/d (e.g. "15m", "30d").
// Returns fallback when the string is empty, malformed, or non-positive.
func ParseLifetime(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return ParseLifetime(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTokenTTL parses RefreshTTL. Returns 30d if unset or invalid.
func (c *Config) RefreshTokenTTL() time.Duration {
	return ParseLifetime(c.RefreshTTL, 30*24*time.Hour)
}

// LockoutWindow parses LockoutDuration. Returns 2h if unset or invalid.
func (c *Config) LockoutWindow() time.Duration {
	return ParseLifetime(c.LockoutDuration, 2*time.Hour)
}

// PermissionTTL parses PermissionCacheTTL. Returns 5m if unset or invalid.
func (c *Config) PermissionTTL() time.Duration {
	return ParseLifetime(c.PermissionCacheTTL, 5*time.Minute)
}

// CleanupEvery parses CleanupInterval. Returns 1h if unset or invalid.
func (c *Config) CleanupEvery() time.Duration {
	return ParseLifetime(c.CleanupInterval, time.Hour)
}

// PruneEvery parses PruneInterval. Returns 24h if unset or invalid.
func (c *Config) PruneEvery() time.Duration {
	return ParseLifetime(c.PruneInterval, 24*time.Hour)
}

// PruneOlderThan parses PruneRetention. Returns 30d if unset or invalid.
func (c *Config) PruneOlderThan() time.Duration {
	return ParseLifetime(c.PruneRetention, 30*24*time.Hour)
}

// RevokedKeepFor parses RevokedRetention. Returns 7d if unset or invalid.
func (c *Config) RevokedKeepFor() time.Duration {
	return ParseLifetime(c.RevokedRetention, 7*24*time.Hour)
}

// AnomalyEvery parses AnomalyInterval. Returns 6h if unset or invalid.
func (c *Config) AnomalyEvery() time.Duration {
	return ParseLifetime(c.AnomalyInterval, 6*time.Hour)
}

// String renders the non-secret parts of the config for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("grpc=%s env=%s rotation=%t lockout=%d/%s", c.GRPCAddr, c.Env, c.RefreshRotation, c.LockoutThreshold, c.LockoutDuration)
}
