package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://user:pw@localhost:5432/budgetwise")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MAIL_ENABLED", "false")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q", cfg.HTTPPort)
	}
	if cfg.JWTIssuer != "budgetwise-backend" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v", cfg.JWTTTL)
	}
	if cfg.OTPSignupTTL != 5*time.Minute {
		t.Errorf("OTPSignupTTL = %v", cfg.OTPSignupTTL)
	}
	if cfg.OTPLoginTTL != 15*time.Minute || cfg.OTPResetTTL != 15*time.Minute {
		t.Errorf("login/reset TTLs = %v/%v", cfg.OTPLoginTTL, cfg.OTPResetTTL)
	}
	if cfg.AuthRateLimitPerMin != 30 || cfg.ForgotRateLimitPerMin != 5 || cfg.APIRateLimitPerMin != 120 {
		t.Errorf("rate limits = %d/%d/%d", cfg.AuthRateLimitPerMin, cfg.ForgotRateLimitPerMin, cfg.APIRateLimitPerMin)
	}
	if cfg.GoogleAuthEnabled {
		t.Error("Google auth should default off")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OTP_SIGNUP_TTL", "2m")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OTPSignupTTL != 2*time.Minute {
		t.Errorf("OTPSignupTTL = %v", cfg.OTPSignupTTL)
	}
	if cfg.JWTTTL != time.Hour {
		t.Errorf("JWTTTL = %v", cfg.JWTTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OTP_LOGIN_TTL", "fifteen minutes")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

func TestValidateCollectsFailures(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL:               "postgres://localhost/db",
			JWTSecret:                 "0123456789abcdef0123456789abcdef",
			JWTTTL:                    time.Hour,
			OTPSignupTTL:              5 * time.Minute,
			OTPLoginTTL:               15 * time.Minute,
			OTPResetTTL:               15 * time.Minute,
			MailWorkers:               2,
			MailQueueLen:              64,
			AuthRateLimitPerMin:       30,
			ForgotRateLimitPerMin:     5,
			APIRateLimitPerMin:        120,
			OTELExporterOTLPEndpoint:  "localhost:4317",
			OTELMetricsExportInterval: 10 * time.Second,
			OTELLogLevel:              "info",
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"jwt ttl too long", func(c *Config) { c.JWTTTL = 8 * 24 * time.Hour }, "JWT_TTL"},
		{"zero otp ttl", func(c *Config) { c.OTPLoginTTL = 0 }, "OTP TTLs"},
		{"mail enabled without host", func(c *Config) { c.MailEnabled = true }, "SMTP_HOST"},
		{"google enabled without client id", func(c *Config) { c.GoogleAuthEnabled = true }, "GOOGLE_OAUTH_CLIENT_ID"},
		{"bad sampling ratio", func(c *Config) { c.OTELTraceSamplingRatio = 1.5 }, "OTEL_TRACE_SAMPLING_RATIO"},
		{"bad log level", func(c *Config) { c.OTELLogLevel = "verbose" }, "OTEL_LOG_LEVEL"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %s", err, tt.wantSub)
			}
		})
	}
}

func TestValidateJoinsMultipleFailures(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), ";") {
		t.Errorf("expected joined failures, got %q", err)
	}
}
