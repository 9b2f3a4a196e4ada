package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/budgetwise/backend/internal/http/response"
	"github.com/budgetwise/backend/internal/observability"
	"github.com/budgetwise/backend/internal/security"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// TokenValidator checks a bearer token and returns its claims. Validation
// includes a directory lookup so credentials for deleted accounts stop
// working immediately.
type TokenValidator interface {
	ValidateToken(ctx context.Context, raw string) (*security.Claims, error)
}

// Auth guards a route subtree with bearer-token authentication. Tokens are
// accepted from the Authorization header only; failures return 401.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return AuthWithStatus(validator, http.StatusUnauthorized, "UNAUTHORIZED")
}

// AuthWithStatus is Auth with a caller-chosen failure status and error code.
// The token-validation probe route reports its failures as 400.
func AuthWithStatus(validator TokenValidator, failStatus int, failCode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordMiddlewareValidationEvent(r.Context(), "auth", "missing_token")
				response.Error(w, r, failStatus, failCode, "missing bearer token", nil)
				return
			}
			claims, err := validator.ValidateToken(r.Context(), raw)
			if err != nil {
				observability.RecordMiddlewareValidationEvent(r.Context(), "auth", "invalid_token")
				response.Error(w, r, failStatus, failCode, "invalid or expired token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
