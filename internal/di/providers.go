package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/app"
	"github.com/budgetwise/backend/internal/config"
	"github.com/budgetwise/backend/internal/database"
	"github.com/budgetwise/backend/internal/health"
	"github.com/budgetwise/backend/internal/http/handler"
	"github.com/budgetwise/backend/internal/http/middleware"
	"github.com/budgetwise/backend/internal/http/router"
	"github.com/budgetwise/backend/internal/mail"
	"github.com/budgetwise/backend/internal/observability"
	"github.com/budgetwise/backend/internal/repository"
	"github.com/budgetwise/backend/internal/security"
	"github.com/budgetwise/backend/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewRoleRepository,
	repository.NewOTPTokenRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
)

var MailSet = wire.NewSet(
	provideMailer,
	provideMailDispatcher,
	wire.Bind(new(service.OTPDispatcher), new(*mail.Dispatcher)),
)

var ServiceSet = wire.NewSet(
	provideOTPService,
	provideGoogleVerifier,
	service.NewAuthService,
	service.NewSubscriptionService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SubscriptionServiceInterface), new(*service.SubscriptionService)),
	wire.Bind(new(middleware.TokenValidator), new(*service.AuthService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewUserHandler,
	handler.NewSubscriptionHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideForgotRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	if err := database.Seed(m.db, m.cfg.BootstrapAdminEmail, slog.Default()); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.Seed(db, cfg.BootstrapAdminEmail, logger); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTSecret, cfg.JWTTTL)
}

func provideMailer(cfg *config.Config, logger *slog.Logger) mail.OTPMailer {
	if !cfg.MailEnabled {
		return mail.NewDevMailer(logger)
	}
	return mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
}

func provideMailDispatcher(mailer mail.OTPMailer, logger *slog.Logger, cfg *config.Config) *mail.Dispatcher {
	return mail.NewDispatcher(mailer, logger, cfg.MailWorkers, cfg.MailQueueLen)
}

func provideOTPService(
	otpRepo repository.OTPTokenRepository,
	userRepo repository.UserRepository,
	dispatcher service.OTPDispatcher,
	cfg *config.Config,
) *service.OTPService {
	return service.NewOTPService(otpRepo, userRepo, dispatcher, service.OTPTTLs{
		Signup: cfg.OTPSignupTTL,
		Login:  cfg.OTPLoginTTL,
		Reset:  cfg.OTPResetTTL,
	})
}

func provideGoogleVerifier(cfg *config.Config, logger *slog.Logger) service.GoogleTokenVerifier {
	if !cfg.GoogleAuthEnabled {
		return nil
	}
	verifier, err := service.NewGoogleVerifier(cfg.GoogleClientID)
	if err != nil {
		// Google login degrades to disabled rather than blocking startup.
		logger.Error("google verifier init failed, google login disabled", "error", err)
		return nil
	}
	return verifier
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute, "api").Middleware()
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":auth")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute, "auth").Middleware()
}

func provideForgotRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.ForgotRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":forgot")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.ForgotRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"forgot",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.ForgotRateLimitPerMin, time.Minute, "forgot").Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	validator middleware.TokenValidator,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	forgotRateLimiter router.ForgotRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:         authHandler,
		UserHandler:         userHandler,
		SubscriptionHandler: subscriptionHandler,
		TokenValidator:      validator,
		CORSOrigins:         cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:    cfg.AuthRateLimitPerMin,
		ForgotRateLimitRPM:  cfg.ForgotRateLimitPerMin,
		APIRateLimitRPM:     cfg.APIRateLimitPerMin,
		GlobalRateLimiter:   globalRateLimiter,
		AuthRateLimiter:     authRateLimiter,
		ForgotRateLimiter:   forgotRateLimiter,
		Readiness:           readiness,
		GoogleAuthEnabled:   cfg.GoogleAuthEnabled,
		EnableOTelHTTP:      cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RateLimitRedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}
