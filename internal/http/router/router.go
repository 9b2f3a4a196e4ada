package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/budgetwise/backend/internal/health"
	"github.com/budgetwise/backend/internal/http/handler"
	"github.com/budgetwise/backend/internal/http/middleware"
	"github.com/budgetwise/backend/internal/http/response"
)

type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	SubscriptionHandler *handler.SubscriptionHandler
	TokenValidator      middleware.TokenValidator
	CORSOrigins         []string
	AuthRateLimitRPM    int
	ForgotRateLimitRPM  int
	APIRateLimitRPM     int
	GlobalRateLimiter   GlobalRateLimiterFunc
	AuthRateLimiter     AuthRateLimiterFunc
	ForgotRateLimiter   ForgotRateLimiterFunc
	Readiness           *health.ProbeRunner
	GoogleAuthEnabled   bool
	EnableOTelHTTP      bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ForgotRateLimiterFunc func(http.Handler) http.Handler

// NewRouter assembles the HTTP surface. Three rate-limit tiers apply: a
// broad API limit on everything, a tighter one on the auth routes, and the
// tightest on OTP issuance for the password-reset flow.
func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	forgotLimiter := dep.ForgotRateLimiter
	if forgotLimiter == nil {
		forgotLimiter = middleware.NewRateLimiter(dep.ForgotRateLimitRPM, time.Minute, "forgot").Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			if dep.GoogleAuthEnabled {
				r.With(authLimiter).Post("/google", dep.AuthHandler.GoogleLogin)
			}
			r.With(authLimiter).Post("/signup/request-otp", dep.AuthHandler.RequestSignupOTP)
			r.With(authLimiter).Post("/signup/verify-otp", dep.AuthHandler.VerifySignupOTP)
			r.With(authLimiter).Post("/login/request-otp", dep.AuthHandler.RequestLoginOTP)
			r.With(authLimiter).Post("/login/verify-otp", dep.AuthHandler.VerifyLoginOTP)
			r.With(forgotLimiter).Post("/forgot-password/request-otp", dep.AuthHandler.RequestPasswordResetOTP)
			r.With(authLimiter).Post("/forgot-password/verify-otp", dep.AuthHandler.VerifyPasswordResetOTP)
			r.With(authLimiter).Post("/reset-password", dep.AuthHandler.ResetPassword)
			r.With(authLimiter).Post("/check-email", dep.AuthHandler.CheckEmail)
			r.With(middleware.AuthWithStatus(dep.TokenValidator, http.StatusBadRequest, "INVALID_TOKEN")).
				Get("/validate", dep.AuthHandler.Validate)
		})

		r.With(middleware.Auth(dep.TokenValidator)).Get("/user/me", dep.UserHandler.Me)
		r.With(middleware.Auth(dep.TokenValidator)).Post("/subscription/upgrade", dep.SubscriptionHandler.Upgrade)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
