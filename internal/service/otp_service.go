package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/budgetwise/backend/internal/domain"
	"github.com/budgetwise/backend/internal/mail"
	"github.com/budgetwise/backend/internal/observability"
	"github.com/budgetwise/backend/internal/repository"
	"github.com/budgetwise/backend/internal/security"
)

// OTPDispatcher is the fire-and-forget boundary to mail transport.
// Enqueue must not block and must not surface delivery errors.
type OTPDispatcher interface {
	Enqueue(msg mail.OTPMessage)
}

type OTPTTLs struct {
	Signup time.Duration
	Login  time.Duration
	Reset  time.Duration
}

func (t OTPTTLs) For(purpose domain.OTPPurpose) time.Duration {
	switch purpose {
	case domain.OTPPurposeSignup:
		return t.Signup
	case domain.OTPPurposeLogin:
		return t.Login
	case domain.OTPPurposeResetPassword:
		return t.Reset
	default:
		return t.Login
	}
}

// OTPService issues and consumes purpose-scoped passcodes.
type OTPService struct {
	otpRepo    repository.OTPTokenRepository
	userRepo   repository.UserRepository
	dispatcher OTPDispatcher
	ttls       OTPTTLs
}

func NewOTPService(otpRepo repository.OTPTokenRepository, userRepo repository.UserRepository, dispatcher OTPDispatcher, ttls OTPTTLs) *OTPService {
	return &OTPService{otpRepo: otpRepo, userRepo: userRepo, dispatcher: dispatcher, ttls: ttls}
}

// Issue generates, persists, and queues a passcode for delivery. The record
// is durably stored before Issue returns; delivery happens in the
// background and its failures never reach this caller.
//
// LOGIN and RESET_PASSWORD require a registered email and evict prior
// records for the same (email, purpose) pair. The delete-then-insert pair is
// not serialized against concurrent issuance: two near-simultaneous requests
// can briefly leave two live codes. Verification matches by exact code
// value, so correctness is unaffected.
func (s *OTPService) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	if purpose != domain.OTPPurposeSignup {
		exists, err := s.userRepo.ExistsByEmail(email)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		if err := s.otpRepo.DeleteByEmailAndPurpose(email, purpose); err != nil {
			return fmt.Errorf("evict prior otp records: %w", err)
		}
	}

	code, err := security.GenerateOTPCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.ttls.For(purpose))
	token := &domain.OTPToken{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		Verified:  false,
	}
	if err := s.otpRepo.Create(token); err != nil {
		return fmt.Errorf("persist otp record: %w", err)
	}
	observability.RecordOTPIssued(ctx, string(purpose))

	s.dispatcher.Enqueue(mail.OTPMessage{
		To:        email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	return nil
}

// Verify consumes the unique record matching exactly (email, code, purpose)
// that is unverified and unexpired. The verified flag flips one-way; a
// consumed record never matches again. Wrong code, wrong purpose, and
// expired all collapse into ErrInvalidOrExpiredOTP.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	now := time.Now()
	token, err := s.otpRepo.FindValid(email, code, purpose, now)
	if err != nil {
		if errors.Is(err, repository.ErrOTPTokenNotFound) {
			observability.RecordOTPVerification(ctx, string(purpose), "rejected")
			return ErrInvalidOrExpiredOTP
		}
		return fmt.Errorf("find otp record: %w", err)
	}
	if err := s.otpRepo.Consume(token.ID, now); err != nil {
		// Lost the race against a concurrent verify of the same record.
		if errors.Is(err, repository.ErrOTPTokenNotFound) {
			observability.RecordOTPVerification(ctx, string(purpose), "rejected")
			return ErrInvalidOrExpiredOTP
		}
		return fmt.Errorf("consume otp record: %w", err)
	}
	observability.RecordOTPVerification(ctx, string(purpose), "verified")
	return nil
}

// HasVerified reports whether a consumed RESET_PASSWORD (or other purpose)
// record exists for the email. It is the elevated-privilege marker the
// reset-password step checks.
func (s *OTPService) HasVerified(email string, purpose domain.OTPPurpose) (bool, error) {
	_, err := s.otpRepo.FindVerified(email, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrOTPTokenNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find verified otp record: %w", err)
	}
	return true, nil
}

// Clear removes every record for (email, purpose), verified or not.
func (s *OTPService) Clear(email string, purpose domain.OTPPurpose) error {
	return s.otpRepo.DeleteByEmailAndPurpose(email, purpose)
}
