package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/budgetwise/backend/internal/http/middleware"
	"github.com/budgetwise/backend/internal/http/response"
	"github.com/budgetwise/backend/internal/observability"
	"github.com/budgetwise/backend/internal/service"
)

// AuthHandler exposes the OTP-gated flows over HTTP. All request payloads
// travel in the body; emails and codes never appear in URLs.
type AuthHandler struct {
	authSvc service.AuthServiceInterface
}

func NewAuthHandler(authSvc service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type signupVerifyRequest struct {
	Email      string `json:"email"`
	OTP        string `json:"otp"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
	Gender     string `json:"gender"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	result, err := h.authSvc.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "provider", "password")
		observability.RecordAuthLogin(r.Context(), "password", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "password")
	observability.RecordAuthLogin(r.Context(), "password", "success")
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "Login successful"})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_login", status, time.Since(start))
	}()

	var req googleLoginRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	result, err := h.authSvc.LoginWithGoogleIDToken(r.Context(), req.IDToken)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "provider", "google")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "google")
	observability.RecordAuthLogin(r.Context(), "google", "success")
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "Login successful"})
}

func (h *AuthHandler) RequestSignupOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "signup_request_otp", status, time.Since(start))
	}()

	var req emailRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if err := h.authSvc.RequestSignupOTP(r.Context(), req.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.otp.request.failed", "purpose", "SIGNUP")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.otp.requested", "purpose", "SIGNUP")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "OTP sent to email"})
}

func (h *AuthHandler) VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "signup_verify_otp", status, time.Since(start))
	}()

	var req signupVerifyRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if req.Password == "" {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "password is required", nil)
		return
	}
	result, err := h.authSvc.CompleteSignup(r.Context(), req.Email, req.OTP, req.Password, service.SignupProfile{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
		Gender:     req.Gender,
	})
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.signup.failed")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.signup.success", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "Signup successful"})
}

func (h *AuthHandler) RequestLoginOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login_request_otp", status, time.Since(start))
	}()

	var req emailRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if err := h.authSvc.RequestLoginOTP(r.Context(), req.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.otp.request.failed", "purpose", "LOGIN")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.otp.requested", "purpose", "LOGIN")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "OTP sent to email"})
}

func (h *AuthHandler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login_verify_otp", status, time.Since(start))
	}()

	var req otpVerifyRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	result, err := h.authSvc.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "provider", "otp")
		observability.RecordAuthLogin(r.Context(), "otp", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "otp")
	observability.RecordAuthLogin(r.Context(), "otp", "success")
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "Login successful"})
}

func (h *AuthHandler) RequestPasswordResetOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password_request_otp", status, time.Since(start))
	}()

	var req emailRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if err := h.authSvc.RequestPasswordResetOTP(r.Context(), req.Email); err != nil {
		status = "failure"
		observability.Audit(r, "auth.otp.request.failed", "purpose", "RESET_PASSWORD")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.otp.requested", "purpose", "RESET_PASSWORD")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "OTP sent to email"})
}

func (h *AuthHandler) VerifyPasswordResetOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password_verify_otp", status, time.Since(start))
	}()

	var req otpVerifyRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	result, err := h.authSvc.VerifyPasswordResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.password_reset.verify.failed")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.verified", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "OTP verified"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var req resetPasswordRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if req.NewPassword == "" {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "newPassword is required", nil)
		return
	}
	if err := h.authSvc.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		status = "failure"
		observability.Audit(r, "auth.password_reset.failed")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.success")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "Password reset successful"})
}

// Validate re-checks the bearer token already vetted by the auth
// middleware and echoes the subject. Clients use it as a session probe.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		observability.RecordTokenValidation(r.Context(), "missing_context")
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "missing auth context", nil)
		return
	}
	observability.RecordTokenValidation(r.Context(), "valid")
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "Token is valid", "email": claims.Subject})
}

func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	exists, err := h.authSvc.EmailExists(r.Context(), req.Email)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to check email", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"exists": exists})
}

// decode parses a JSON body, writing a 400 on failure. Returns false when
// the caller should stop.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return false
	}
	return true
}

// writeAuthError maps the service failure taxonomy onto HTTP statuses.
// Anything unrecognized is a 500 with a generic message.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
	case errors.Is(err, service.ErrInvalidGoogleToken):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Google token", nil)
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	case errors.Is(err, service.ErrInvalidOrExpiredOTP):
		response.Error(w, r, http.StatusBadRequest, "INVALID_OTP", "Invalid or expired OTP", nil)
	case errors.Is(err, service.ErrNoValidResetRequest):
		response.Error(w, r, http.StatusBadRequest, "NO_VALID_RESET_REQUEST", "No valid password reset request found", nil)
	case errors.Is(err, service.ErrInvalidEmail):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid email address", nil)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		response.Error(w, r, http.StatusBadRequest, "EMAIL_TAKEN", "Email already registered", nil)
	case errors.Is(err, service.ErrGoogleAuthDisabled):
		response.Error(w, r, http.StatusServiceUnavailable, "GOOGLE_AUTH_DISABLED", "Google login is not available", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "something went wrong", nil)
	}
}
