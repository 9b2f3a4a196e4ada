package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is loaded once at startup and treated as immutable afterwards.
// Everything that signs or verifies credentials receives it by reference;
// nothing latches values into package-level state.
type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	JWTIssuer string
	JWTSecret string
	JWTTTL    time.Duration

	OTPSignupTTL time.Duration
	OTPLoginTTL  time.Duration
	OTPResetTTL  time.Duration

	MailEnabled  bool
	MailFrom     string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailWorkers  int
	MailQueueLen int

	GoogleAuthEnabled bool
	GoogleClientID    string

	BootstrapAdminEmail string
	CORSAllowedOrigins  []string

	AuthRateLimitPerMin   int
	ForgotRateLimitPerMin int
	APIRateLimitPerMin    int
	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	ReadinessProbeTimeout  time.Duration
	ServerStartGracePeriod time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTIssuer: getEnv("JWT_ISSUER", "budgetwise-backend"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		MailEnabled:  getEnvBool("MAIL_ENABLED", true),
		MailFrom:     getEnv("MAIL_FROM", "BudgetWise <noreply@budgetwise.com>"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "465"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailWorkers:  getEnvInt("MAIL_WORKERS", 2),
		MailQueueLen: getEnvInt("MAIL_QUEUE_LEN", 64),

		GoogleAuthEnabled: getEnvBool("AUTH_GOOGLE_ENABLED", false),
		GoogleClientID:    os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),

		BootstrapAdminEmail: strings.TrimSpace(strings.ToLower(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		AuthRateLimitPerMin:   getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		ForgotRateLimitPerMin: getEnvInt("FORGOT_RATE_LIMIT_PER_MIN", 5),
		APIRateLimitPerMin:    getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:  getEnv("RATE_LIMIT_REDIS_PREFIX", "budgetwise:rl"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "budgetwise-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.OTPSignupTTL, err = parseDurationEnv("OTP_SIGNUP_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.OTPLoginTTL, err = parseDurationEnv("OTP_LOGIN_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.OTPResetTTL, err = parseDurationEnv("OTP_RESET_TTL", "15m"); err != nil {
		return nil, err
	}
	if cfg.ReadinessProbeTimeout, err = parseDurationEnv("READINESS_PROBE_TIMEOUT", "1s"); err != nil {
		return nil, err
	}
	if cfg.ServerStartGracePeriod, err = parseDurationEnv("SERVER_START_GRACE_PERIOD", "0s"); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = parseDurationEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.JWTTTL <= 0 || c.JWTTTL > 7*24*time.Hour {
		errs = append(errs, "JWT_TTL must be between 1s and 7d")
	}
	if c.OTPSignupTTL <= 0 || c.OTPLoginTTL <= 0 || c.OTPResetTTL <= 0 {
		errs = append(errs, "OTP TTLs must be > 0")
	}
	if c.MailEnabled && c.SMTPHost == "" {
		errs = append(errs, "SMTP_HOST is required when MAIL_ENABLED=true")
	}
	if c.MailEnabled && c.SMTPUsername == "" {
		errs = append(errs, "SMTP_USERNAME is required when MAIL_ENABLED=true")
	}
	if c.GoogleAuthEnabled && c.GoogleClientID == "" {
		errs = append(errs, "GOOGLE_OAUTH_CLIENT_ID is required when AUTH_GOOGLE_ENABLED=true")
	}
	if c.MailWorkers <= 0 {
		errs = append(errs, "MAIL_WORKERS must be > 0")
	}
	if c.MailQueueLen <= 0 {
		errs = append(errs, "MAIL_QUEUE_LEN must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.ForgotRateLimitPerMin <= 0 {
		errs = append(errs, "FORGOT_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, def))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
