package domain

import (
	"fmt"
	"time"
)

// OTPPurpose scopes a passcode to the flow that requested it. A code issued
// for one purpose never matches a verification attempt for another.
type OTPPurpose string

const (
	OTPPurposeSignup        OTPPurpose = "SIGNUP"
	OTPPurposeLogin         OTPPurpose = "LOGIN"
	OTPPurposeResetPassword OTPPurpose = "RESET_PASSWORD"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeSignup, OTPPurposeLogin, OTPPurposeResetPassword:
		return true
	}
	return false
}

func ParseOTPPurpose(raw string) (OTPPurpose, error) {
	p := OTPPurpose(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unknown otp purpose %q", raw)
	}
	return p, nil
}

// OTPToken is one outstanding or resolved passcode. Verified is the only
// mutable field and its transition is one-way: false -> true.
type OTPToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"size:255;not null;index:idx_otp_email_purpose" json:"email"`
	Code      string     `gorm:"size:6;not null" json:"-"`
	Purpose   OTPPurpose `gorm:"size:32;not null;index:idx_otp_email_purpose" json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	Verified  bool       `gorm:"not null;default:false" json:"verified"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
