package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/budgetwise/backend/internal/domain"
)

// OTPMailer delivers a passcode to a recipient. Implementations may block on
// network I/O; callers that must not wait go through the Dispatcher.
type OTPMailer interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

type OTPMessage struct {
	To        string
	Code      string
	Purpose   domain.OTPPurpose
	ExpiresAt time.Time
}

func subjectFor(purpose domain.OTPPurpose) string {
	switch purpose {
	case domain.OTPPurposeSignup:
		return "BudgetWise - Verify Your Email for Registration"
	case domain.OTPPurposeLogin:
		return "BudgetWise - Your Login OTP"
	case domain.OTPPurposeResetPassword:
		return "BudgetWise - Password Reset Request"
	default:
		return "BudgetWise - Verification Code"
	}
}

func descriptionFor(purpose domain.OTPPurpose) string {
	switch purpose {
	case domain.OTPPurposeSignup:
		return "Thank you for signing up with BudgetWise! Please use the verification code below to complete your registration."
	case domain.OTPPurposeLogin:
		return "Please use the verification code below to sign in to your BudgetWise account."
	case domain.OTPPurposeResetPassword:
		return "Please use the verification code below to reset your BudgetWise account password."
	default:
		return "Please use the verification code below for your request."
	}
}

func htmlBody(msg OTPMessage) string {
	minutes := int(time.Until(msg.ExpiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border-radius: 8px; background-color: #f9f9f9; text-align: center;">
  <h2 style="color: #333;">%s</h2>
  <p style="font-size: 16px; color: #555;">%s</p>
  <div style="display: inline-block; margin: 20px 0; padding: 15px 30px; font-size: 24px; font-weight: bold; color: #fff; background-color: #007bff; border-radius: 5px; letter-spacing: 3px;">%s</div>
  <p style="font-size: 14px; color: #777;">This code will expire in %d minutes.</p>
  <p style="font-size: 12px; color: #aaa;">This is an automated message. Please do not reply.</p>
</div>`, subjectFor(msg.Purpose), descriptionFor(msg.Purpose), msg.Code, minutes)
}
