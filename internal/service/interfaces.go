package service

import (
	"context"

	"github.com/budgetwise/backend/internal/security"
)

// AuthServiceInterface is the handler-facing surface of AuthService.
type AuthServiceInterface interface {
	LoginWithPassword(ctx context.Context, email, password string) (*LoginResult, error)
	RequestSignupOTP(ctx context.Context, email string) error
	CompleteSignup(ctx context.Context, email, code, password string, profile SignupProfile) (*LoginResult, error)
	RequestLoginOTP(ctx context.Context, email string) error
	VerifyLoginOTP(ctx context.Context, email, code string) (*LoginResult, error)
	RequestPasswordResetOTP(ctx context.Context, email string) error
	VerifyPasswordResetOTP(ctx context.Context, email, code string) (*LoginResult, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
	LoginWithGoogleIDToken(ctx context.Context, idToken string) (*LoginResult, error)
	ValidateToken(ctx context.Context, raw string) (*security.Claims, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// SubscriptionServiceInterface is the handler-facing surface of
// SubscriptionService.
type SubscriptionServiceInterface interface {
	Upgrade(ctx context.Context, email, plan, period string) (*LoginResult, error)
}

var (
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ SubscriptionServiceInterface = (*SubscriptionService)(nil)
)
