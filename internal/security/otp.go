package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPCodeLength is the fixed width of generated passcodes.
const OTPCodeLength = 6

var otpCodeSpan = big.NewInt(1_000_000)

// GenerateOTPCode returns a zero-padded 6-digit code drawn uniformly from
// [0, 999999] using the platform CSPRNG. rand.Int performs rejection
// sampling, so the distribution carries no modulo bias.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpan)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
