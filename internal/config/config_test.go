package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, ":9090")
	}
	if cfg.JWTIssuer != "homeryland-api" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "homeryland-api")
	}
	if cfg.JWTAudience != "homeryland-client" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "homeryland-client")
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.EmailVerificationTokenTTL() != 24*time.Hour {
		t.Errorf("EmailVerificationTokenTTL = %v, want 24h", cfg.EmailVerificationTokenTTL())
	}
	if cfg.PasswordResetTokenTTL() != time.Hour {
		t.Errorf("PasswordResetTokenTTL = %v, want 1h", cfg.PasswordResetTokenTTL())
	}
	if cfg.Retention() != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Retention())
	}
	if cfg.CleanupInterval() != time.Hour {
		t.Errorf("CleanupInterval = %v, want 1h", cfg.CleanupInterval())
	}
	if cfg.SessionEventsTopic != "session-events" {
		t.Errorf("SessionEventsTopic = %q, want default", cfg.SessionEventsTopic)
	}
	if cfg.OTelServiceName != "session-authority" {
		t.Errorf("OTelServiceName = %q, want default", cfg.OTelServiceName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.IsProduction() {
		t.Error("IsProduction should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":7070")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("DB_MAX_CONNS", "20")
	os.Setenv("ACCESS_TOKEN_TTL", "5m")
	os.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	os.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":7070" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":7070")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("DBMaxConns = %d, want 20", cfg.DBMaxConns)
	}
	if cfg.AccessTTL() != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL())
	}
	if !cfg.OTelInsecure {
		t.Error("OTelInsecure should be true")
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("REFRESH_TOKEN_TTL", "7d")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "REFRESH_TOKEN_TTL") {
		t.Errorf("Load error = %v, want REFRESH_TOKEN_TTL error", err)
	}
}

func TestLoad_Production(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"memory store refused", map[string]string{"INTERNAL_API_KEY": "k"}, "DATABASE_URL"},
		{"internal key required", map[string]string{"DATABASE_URL": "postgres://localhost/db"}, "INTERNAL_API_KEY"},
		{"complete", map[string]string{"DATABASE_URL": "postgres://localhost/db", "INTERNAL_API_KEY": "k"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("APP_ENV", "production")
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				if !cfg.IsProduction() {
					t.Error("IsProduction = false")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_NegativeMaxConns(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_MAX_CONNS", "-1")
	if _, err := Load(); err == nil {
		t.Error("Load should reject negative DB_MAX_CONNS")
	}
}

func TestDurationAccessors_Fallbacks(t *testing.T) {
	cfg := &Config{AccessTokenTTL: "invalid", RefreshTokenTTL: "0s", SessionRetention: "-1h"}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.Retention() != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Retention())
	}
}

func TestCleanupInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"0", 0},
		{"-5m", 0},
		{"bogus", time.Hour},
	}
	for _, tt := range tests {
		cfg := &Config{TokenCleanupInterval: tt.in}
		if got := cfg.CleanupInterval(); got != tt.want {
			t.Errorf("CleanupInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTokenSecrets(t *testing.T) {
	master := strings.Repeat("m", 32)

	t.Run("derived from master", func(t *testing.T) {
		cfg := &Config{TokenMasterSecret: master}
		s, err := cfg.TokenSecrets()
		if err != nil {
			t.Fatalf("TokenSecrets: %v", err)
		}
		if len(s.Access) == 0 || len(s.PasswordReset) == 0 {
			t.Errorf("secrets not derived: %+v", s)
		}
	})

	t.Run("explicit secret kept", func(t *testing.T) {
		cfg := &Config{TokenMasterSecret: master, JWTAccessSecret: strings.Repeat("a", 32)}
		s, err := cfg.TokenSecrets()
		if err != nil {
			t.Fatalf("TokenSecrets: %v", err)
		}
		if string(s.Access) != strings.Repeat("a", 32) {
			t.Error("explicit access secret was replaced")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := (&Config{}).TokenSecrets(); err == nil {
			t.Error("TokenSecrets should fail without secrets")
		}
	})

	t.Run("short master", func(t *testing.T) {
		if _, err := (&Config{TokenMasterSecret: "short"}).TokenSecrets(); err == nil {
			t.Error("TokenSecrets should fail for a short master secret")
		}
	})

	t.Run("shared secrets", func(t *testing.T) {
		same := strings.Repeat("s", 32)
		cfg := &Config{JWTAccessSecret: same, JWTRefreshSecret: same, EmailVerificationSecret: strings.Repeat("e", 32), PasswordResetSecret: strings.Repeat("p", 32)}
		if _, err := cfg.TokenSecrets(); err == nil {
			t.Error("TokenSecrets should reject reused secrets")
		}
	})
}

func TestKafkaBrokersList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092 , ,b:9092 ", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		got := (&Config{KafkaBrokers: tt.in}).KafkaBrokersList()
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should have no brokers")
	}
}
