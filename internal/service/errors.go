package service

import "errors"

// Failure taxonomy of the auth core. The HTTP boundary maps these to status
// codes; messages stay generic on purpose.
var (
	// ErrUserNotFound is raised when LOGIN or RESET_PASSWORD OTP issuance
	// targets an unregistered email. Password login does not use it; see
	// ErrInvalidCredentials.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidOrExpiredOTP covers wrong code, wrong purpose, and past
	// expiry alike. The cases are indistinguishable to the caller so that
	// failures reveal nothing useful to a brute-force probe.
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP")

	// ErrInvalidCredentials is returned for password-login failure whether
	// the email is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoValidResetRequest guards the final reset-password step: it
	// requires a previously verified RESET_PASSWORD code for the email.
	ErrNoValidResetRequest = errors.New("no valid password reset request found")

	ErrEmailAlreadyRegistered = errors.New("email already registered")

	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidGoogleToken covers every Google ID token rejection:
	// signature, issuer, audience, expiry, or an unverified email claim.
	ErrInvalidGoogleToken = errors.New("invalid google token")

	ErrGoogleAuthDisabled = errors.New("google auth is disabled")
)
