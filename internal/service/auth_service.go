package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/domain"
	"github.com/budgetwise/backend/internal/repository"
	"github.com/budgetwise/backend/internal/security"
)

// AuthService sequences the three OTP-gated flows (signup, login, password
// reset) plus password and Google login. It is the only component that
// mutates the user directory; code issuance and consumption are delegated
// to OTPService, credential minting to JWTManager.
type AuthService struct {
	jwtMgr         *security.JWTManager
	otpSvc         *OTPService
	userRepo       repository.UserRepository
	roleRepo       repository.RoleRepository
	googleVerifier GoogleTokenVerifier
}

func NewAuthService(
	jwtMgr *security.JWTManager,
	otpSvc *OTPService,
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	googleVerifier GoogleTokenVerifier,
) *AuthService {
	return &AuthService{
		jwtMgr:         jwtMgr,
		otpSvc:         otpSvc,
		userRepo:       userRepo,
		roleRepo:       roleRepo,
		googleVerifier: googleVerifier,
	}
}

// LoginResult carries the signed session credential plus the user snapshot
// it was minted from.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// SignupProfile is the profile captured at signup completion.
type SignupProfile struct {
	FirstName  string
	LastName   string
	Department string
	Gender     string
}

// LoginWithPassword authenticates against the stored hash. Unknown email
// and wrong password both yield ErrInvalidCredentials so responses cannot
// be used to enumerate accounts.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// RequestSignupOTP issues a SIGNUP code. The email may be unregistered;
// prior pending SIGNUP records are left in place.
func (s *AuthService) RequestSignupOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	return s.otpSvc.Issue(ctx, email, domain.OTPPurposeSignup)
}

// CompleteSignup consumes the SIGNUP code, creates the account with the
// default USER role, and returns a fresh credential for it.
func (s *AuthService) CompleteSignup(ctx context.Context, email, code, password string, profile SignupProfile) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.otpSvc.Verify(ctx, email, code, domain.OTPPurposeSignup); err != nil {
		return nil, err
	}

	if exists, err := s.userRepo.ExistsByEmail(email); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	} else if exists {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Department:   profile.Department,
		Gender:       profile.Gender,
		Enabled:      true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.assignRole(user, domain.RoleUser); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// RequestLoginOTP issues a LOGIN code for a registered email, evicting any
// prior pending LOGIN codes for it.
func (s *AuthService) RequestLoginOTP(ctx context.Context, email string) error {
	return s.otpSvc.Issue(ctx, normalizeEmail(email), domain.OTPPurposeLogin)
}

// VerifyLoginOTP consumes a LOGIN code and issues a credential without a
// password check; possession of the code proves control of the mailbox.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.otpSvc.Verify(ctx, email, code, domain.OTPPurposeLogin); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.issue(user)
}

// RequestPasswordResetOTP issues a RESET_PASSWORD code for a registered
// email.
func (s *AuthService) RequestPasswordResetOTP(ctx context.Context, email string) error {
	return s.otpSvc.Issue(ctx, normalizeEmail(email), domain.OTPPurposeResetPassword)
}

// VerifyPasswordResetOTP consumes a RESET_PASSWORD code. The consumed
// record stays behind as a short-lived marker that ResetPassword checks;
// the returned credential lets the client proceed straight into the app
// after resetting.
func (s *AuthService) VerifyPasswordResetOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.otpSvc.Verify(ctx, email, code, domain.OTPPurposeResetPassword); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.issue(user)
}

// ResetPassword stores a new password hash, gated on a verified
// RESET_PASSWORD record for the email. All RESET_PASSWORD records for the
// email are removed afterwards, closing the elevated window.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	verified, err := s.otpSvc.HasVerified(email, domain.OTPPurposeResetPassword)
	if err != nil {
		return err
	}
	if !verified {
		return ErrNoValidResetRequest
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(email, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return s.otpSvc.Clear(email, domain.OTPPurposeResetPassword)
}

// LoginWithGoogleIDToken verifies a Google ID token and upserts the user.
// New accounts get a random password hash to satisfy the directory
// constraint; they can only sign in via Google or OTP until a reset.
func (s *AuthService) LoginWithGoogleIDToken(ctx context.Context, idToken string) (*LoginResult, error) {
	if s.googleVerifier == nil {
		return nil, ErrGoogleAuthDisabled
	}
	identity, err := s.googleVerifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(identity.Email)
	user, err := s.userRepo.FindByEmail(email)
	switch {
	case err == nil:
		if backfillNames(user, identity.FirstName, identity.LastName) {
			if err := s.userRepo.Update(user); err != nil {
				return nil, fmt.Errorf("update user: %w", err)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := security.HashPassword(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user = &domain.User{
			Email:        email,
			PasswordHash: hash,
			FirstName:    identity.FirstName,
			LastName:     identity.LastName,
			Enabled:      true,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if err := s.assignRole(user, domain.RoleUser); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.issue(user)
}

// ValidateToken checks signature, expiry, and that the subject still exists
// in the directory. Used at the request boundary and by /validate.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*security.Claims, error) {
	claims, err := s.jwtMgr.Parse(raw)
	if err != nil {
		return nil, err
	}
	exists, err := s.userRepo.ExistsByEmail(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, security.ErrInvalidToken
	}
	return claims, nil
}

// EmailExists reports whether the email is registered.
func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.userRepo.ExistsByEmail(normalizeEmail(email))
}

func (s *AuthService) issue(user *domain.User) (*LoginResult, error) {
	token, expiresAt, err := s.jwtMgr.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) assignRole(user *domain.User, roleName string) error {
	role, err := s.roleRepo.FindByName(roleName)
	if err != nil {
		return fmt.Errorf("find role %s: %w", roleName, err)
	}
	if err := s.userRepo.AddRole(user.ID, role.ID); err != nil {
		return fmt.Errorf("assign role %s: %w", roleName, err)
	}
	return nil
}

func backfillNames(user *domain.User, firstName, lastName string) bool {
	updated := false
	if user.FirstName == "" && firstName != "" {
		user.FirstName = firstName
		updated = true
	}
	if user.LastName == "" && lastName != "" {
		user.LastName = lastName
		updated = true
	}
	return updated
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
