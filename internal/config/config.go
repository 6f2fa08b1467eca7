// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"session-authority/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr serves Prometheus /metrics; empty disables the endpoint.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty selects the in-memory session store (not allowed in production).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxConns caps the pgx pool size; 0 keeps the pgxpool default.
	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`

	// Per-purpose HMAC secrets. Any left empty is derived from TokenMasterSecret.
	JWTAccessSecret         string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret        string `mapstructure:"JWT_REFRESH_SECRET"`
	EmailVerificationSecret string `mapstructure:"EMAIL_VERIFICATION_SECRET"`
	PasswordResetSecret     string `mapstructure:"PASSWORD_RESET_SECRET"`
	TokenMasterSecret       string `mapstructure:"TOKEN_MASTER_SECRET"`

	// JWTIssuer is the iss claim stamped on and required of every token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim stamped on and required of every token.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// Token and session lifetimes, as Go durations (e.g. "15m", "168h").
	AccessTokenTTL       string `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL      string `mapstructure:"REFRESH_TOKEN_TTL"`
	EmailVerificationTTL string `mapstructure:"EMAIL_VERIFICATION_TTL"`
	PasswordResetTTL     string `mapstructure:"PASSWORD_RESET_TTL"`
	SessionRetention     string `mapstructure:"SESSION_RETENTION"`
	// TokenCleanupInterval is how often the sweeper runs; "0" disables it.
	TokenCleanupInterval string `mapstructure:"TOKEN_CLEANUP_INTERVAL"`

	// InternalAPIKey authenticates the trusted HTTP tier (x-internal-key). Empty rejects every internal call.
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLP export (optional). Empty endpoint keeps the providers local.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Session events (optional). When Kafka brokers are set, lifecycle events are published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SessionEventsTopic is the Kafka topic for session events.
	SessionEventsTopic string `mapstructure:"SESSION_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the session event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
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
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 0)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("EMAIL_VERIFICATION_SECRET", "")
	v.SetDefault("PASSWORD_RESET_SECRET", "")
	v.SetDefault("TOKEN_MASTER_SECRET", "")
	v.SetDefault("JWT_ISSUER", "homeryland-api")
	v.SetDefault("JWT_AUDIENCE", "homeryland-client")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("EMAIL_VERIFICATION_TTL", "24h")
	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("SESSION_RETENTION", "720h") // 30d
	v.SetDefault("TOKEN_CLEANUP_INTERVAL", "1h")
	v.SetDefault("INTERNAL_API_KEY", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "session-authority")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SESSION_EVENTS_TOPIC", "session-events")
	v.SetDefault("KAFKA_GROUP_ID", "session-authority-audit")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.DBMaxConns < 0 {
		return nil, errors.New("config: DB_MAX_CONNS must not be negative")
	}
	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL is required when APP_ENV=production")
		}
		if cfg.InternalAPIKey == "" {
			return nil, errors.New("config: INTERNAL_API_KEY is required when APP_ENV=production")
		}
	}
	for key, val := range map[string]string{
		"ACCESS_TOKEN_TTL":       cfg.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":      cfg.RefreshTokenTTL,
		"EMAIL_VERIFICATION_TTL": cfg.EmailVerificationTTL,
		"PASSWORD_RESET_TTL":     cfg.PasswordResetTTL,
		"SESSION_RETENTION":      cfg.SessionRetention,
		"TOKEN_CLEANUP_INTERVAL": cfg.TokenCleanupInterval,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return nil, fmt.Errorf("config: %s: %w", key, err)
		}
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return positiveDuration(c.AccessTokenTTL, 15*time.Minute) }

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return positiveDuration(c.RefreshTokenTTL, 168*time.Hour)
}

func (c *Config) EmailVerificationTokenTTL() time.Duration {
	return positiveDuration(c.EmailVerificationTTL, 24*time.Hour)
}

func (c *Config) PasswordResetTokenTTL() time.Duration {
	return positiveDuration(c.PasswordResetTTL, time.Hour)
}

// Retention is how long a session row is kept after creation. Returns 720h if unset or invalid.
func (c *Config) Retention() time.Duration {
	return positiveDuration(c.SessionRetention, 720*time.Hour)
}

// CleanupInterval returns the sweeper period. Zero (or negative) disables the sweeper.
func (c *Config) CleanupInterval() time.Duration {
	d, err := time.ParseDuration(c.TokenCleanupInterval)
	if err != nil {
		return time.Hour
	}
	if d < 0 {
		return 0
	}
	return d
}

func positiveDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TokenSecrets assembles and validates the four signing secrets, deriving any
// missing one from TOKEN_MASTER_SECRET.
func (c *Config) TokenSecrets() (security.Secrets, error) {
	s := security.Secrets{
		Access:            []byte(c.JWTAccessSecret),
		Refresh:           []byte(c.JWTRefreshSecret),
		EmailVerification: []byte(c.EmailVerificationSecret),
		PasswordReset:     []byte(c.PasswordResetSecret),
	}
	var master []byte
	if c.TokenMasterSecret != "" {
		master = []byte(c.TokenMasterSecret)
	}
	s, err := s.FillMissing(master)
	if err != nil {
		return security.Secrets{}, fmt.Errorf("config: TOKEN_MASTER_SECRET: %w", err)
	}
	if err := s.Validate(); err != nil {
		return security.Secrets{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
