package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/budgetwise/backend/internal/domain"
	"github.com/budgetwise/backend/internal/security"
)

type stubGoogleVerifier struct {
	identity *GoogleIdentity
	err      error
}

func (v *stubGoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

type authFixture struct {
	svc        *AuthService
	users      *fakeUserRepo
	otpRepo    *fakeOTPRepo
	dispatcher *captureDispatcher
	google     *stubGoogleVerifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newFakeUserRepo()
	otpRepo := newFakeOTPRepo()
	dispatcher := &captureDispatcher{}
	google := &stubGoogleVerifier{}
	otpSvc := NewOTPService(otpRepo, users, dispatcher, OTPTTLs{
		Signup: 5 * time.Minute,
		Login:  15 * time.Minute,
		Reset:  15 * time.Minute,
	})
	jwtMgr := security.NewJWTManager("budgetwise-test", "0123456789abcdef0123456789abcdef", time.Hour)
	return &authFixture{
		svc:        NewAuthService(jwtMgr, otpSvc, users, newFakeRoleRepo(), google),
		users:      users,
		otpRepo:    otpRepo,
		dispatcher: dispatcher,
		google:     google,
	}
}

// signup runs the full two-step signup for email and returns the result.
func (f *authFixture) signup(t *testing.T, email, password string) *LoginResult {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.RequestSignupOTP(ctx, email); err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	msg, ok := f.dispatcher.last()
	if !ok {
		t.Fatal("no signup code was dispatched")
	}
	res, err := f.svc.CompleteSignup(ctx, email, msg.Code, password, SignupProfile{
		FirstName: "Ada", LastName: "Lovelace", Department: "Engineering", Gender: "FEMALE",
	})
	if err != nil {
		t.Fatalf("CompleteSignup: %v", err)
	}
	return res
}

func TestSignupFlow(t *testing.T) {
	f := newAuthFixture(t)

	res := f.signup(t, "ada@example.com", "s3cret-password")
	if res.Token == "" {
		t.Error("expected a signed credential")
	}
	if res.User.Email != "ada@example.com" {
		t.Errorf("user email = %q", res.User.Email)
	}
	if res.User.FirstName != "Ada" || res.User.Department != "Engineering" {
		t.Errorf("profile not persisted: %+v", res.User)
	}
	if roles := f.users.rolesOf(res.User.ID); len(roles) != 1 || roles[0] != 1 {
		t.Errorf("roles = %v, want the default USER role", roles)
	}

	// The fresh account can sign in with its password.
	if _, err := f.svc.LoginWithPassword(context.Background(), "ada@example.com", "s3cret-password"); err != nil {
		t.Errorf("LoginWithPassword after signup: %v", err)
	}
}

func TestRequestSignupOTPRejectsMalformedEmail(t *testing.T) {
	f := newAuthFixture(t)
	for _, email := range []string{"", "not-an-address", "spaces in@it"} {
		if err := f.svc.RequestSignupOTP(context.Background(), email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("RequestSignupOTP(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestCompleteSignupRejectsRegisteredEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "taken@example.com", "pw-one")

	ctx := context.Background()
	if err := f.svc.RequestSignupOTP(ctx, "taken@example.com"); err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	msg, _ := f.dispatcher.last()
	_, err := f.svc.CompleteSignup(ctx, "taken@example.com", msg.Code, "pw-two", SignupProfile{})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
	// The code was consumed before the directory check; replaying it fails.
	_, err = f.svc.CompleteSignup(ctx, "taken@example.com", msg.Code, "pw-two", SignupProfile{})
	if !errors.Is(err, ErrInvalidOrExpiredOTP) {
		t.Errorf("replay: err = %v, want ErrInvalidOrExpiredOTP", err)
	}
}

func TestCompleteSignupRejectsBadCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if err := f.svc.RequestSignupOTP(ctx, "bad@example.com"); err != nil {
		t.Fatalf("RequestSignupOTP: %v", err)
	}
	_, err := f.svc.CompleteSignup(ctx, "bad@example.com", "999999x", "pw", SignupProfile{})
	if !errors.Is(err, ErrInvalidOrExpiredOTP) {
		t.Fatalf("err = %v, want ErrInvalidOrExpiredOTP", err)
	}
	if ok, _ := f.users.ExistsByEmail("bad@example.com"); ok {
		t.Error("no account should exist after a failed signup")
	}
}

func TestLoginWithPasswordUniformFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "uniform@example.com", "right-password")

	ctx := context.Background()
	_, unknownErr := f.svc.LoginWithPassword(ctx, "nobody@example.com", "whatever")
	_, wrongErr := f.svc.LoginWithPassword(ctx, "uniform@example.com", "wrong-password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", wrongErr)
	}
}

func TestLoginWithPasswordNormalizesEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "case@example.com", "pw")

	if _, err := f.svc.LoginWithPassword(context.Background(), "  Case@Example.COM ", "pw"); err != nil {
		t.Fatalf("LoginWithPassword with unnormalized email: %v", err)
	}
}

func TestLoginOTPFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "otp@example.com", "pw")

	ctx := context.Background()
	if err := f.svc.RequestLoginOTP(ctx, "otp@example.com"); err != nil {
		t.Fatalf("RequestLoginOTP: %v", err)
	}
	msg, _ := f.dispatcher.last()
	if msg.Purpose != domain.OTPPurposeLogin {
		t.Fatalf("dispatched purpose = %q", msg.Purpose)
	}

	res, err := f.svc.VerifyLoginOTP(ctx, "otp@example.com", msg.Code)
	if err != nil {
		t.Fatalf("VerifyLoginOTP: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a signed credential")
	}

	// Single use.
	if _, err := f.svc.VerifyLoginOTP(ctx, "otp@example.com", msg.Code); !errors.Is(err, ErrInvalidOrExpiredOTP) {
		t.Errorf("replay: err = %v, want ErrInvalidOrExpiredOTP", err)
	}
}

func TestRequestLoginOTPUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	err := f.svc.RequestLoginOTP(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "reset@example.com", "old-password")
	ctx := context.Background()

	if err := f.svc.RequestPasswordResetOTP(ctx, "reset@example.com"); err != nil {
		t.Fatalf("RequestPasswordResetOTP: %v", err)
	}
	msg, _ := f.dispatcher.last()
	if _, err := f.svc.VerifyPasswordResetOTP(ctx, "reset@example.com", msg.Code); err != nil {
		t.Fatalf("VerifyPasswordResetOTP: %v", err)
	}
	if err := f.svc.ResetPassword(ctx, "reset@example.com", "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := f.svc.LoginWithPassword(ctx, "reset@example.com", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := f.svc.LoginWithPassword(ctx, "reset@example.com", "new-password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// The verified marker was cleared; a second reset needs a fresh code.
	if err := f.svc.ResetPassword(ctx, "reset@example.com", "another"); !errors.Is(err, ErrNoValidResetRequest) {
		t.Errorf("reset without fresh verify: err = %v, want ErrNoValidResetRequest", err)
	}
}

func TestResetPasswordWithoutVerifiedCode(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "gate@example.com", "pw")
	ctx := context.Background()

	// Requesting a code is not enough; it must be verified first.
	if err := f.svc.RequestPasswordResetOTP(ctx, "gate@example.com"); err != nil {
		t.Fatalf("RequestPasswordResetOTP: %v", err)
	}
	err := f.svc.ResetPassword(ctx, "gate@example.com", "new-pw")
	if !errors.Is(err, ErrNoValidResetRequest) {
		t.Fatalf("err = %v, want ErrNoValidResetRequest", err)
	}
}

func TestGoogleLoginCreatesAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.google.identity = &GoogleIdentity{Email: "G.User@Example.com", FirstName: "Grace", LastName: "Hopper"}

	res, err := f.svc.LoginWithGoogleIDToken(context.Background(), "opaque-id-token")
	if err != nil {
		t.Fatalf("LoginWithGoogleIDToken: %v", err)
	}
	if res.User.Email != "g.user@example.com" {
		t.Errorf("email = %q, want lowercased", res.User.Email)
	}
	if res.User.FirstName != "Grace" || res.User.LastName != "Hopper" {
		t.Errorf("names not stored: %+v", res.User)
	}
	if res.User.PasswordHash == "" {
		t.Error("a placeholder password hash must be set")
	}
	if roles := f.users.rolesOf(res.User.ID); len(roles) != 1 || roles[0] != 1 {
		t.Errorf("roles = %v, want the default USER role", roles)
	}
}

func TestGoogleLoginBackfillsNames(t *testing.T) {
	f := newAuthFixture(t)
	if err := f.users.Create(&domain.User{Email: "known@example.com", PasswordHash: "x", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.google.identity = &GoogleIdentity{Email: "known@example.com", FirstName: "Alan", LastName: "Turing"}

	res, err := f.svc.LoginWithGoogleIDToken(context.Background(), "opaque-id-token")
	if err != nil {
		t.Fatalf("LoginWithGoogleIDToken: %v", err)
	}
	if res.User.FirstName != "Alan" || res.User.LastName != "Turing" {
		t.Errorf("names not backfilled: %+v", res.User)
	}
	stored, _ := f.users.FindByEmail("known@example.com")
	if stored.FirstName != "Alan" {
		t.Errorf("backfill not persisted: %+v", stored)
	}
}

func TestGoogleLoginDoesNotOverwriteExistingNames(t *testing.T) {
	f := newAuthFixture(t)
	if err := f.users.Create(&domain.User{Email: "named@example.com", PasswordHash: "x", FirstName: "Original", LastName: "Name", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.google.identity = &GoogleIdentity{Email: "named@example.com", FirstName: "Different", LastName: "Person"}

	res, err := f.svc.LoginWithGoogleIDToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("LoginWithGoogleIDToken: %v", err)
	}
	if res.User.FirstName != "Original" || res.User.LastName != "Name" {
		t.Errorf("existing names overwritten: %+v", res.User)
	}
}

func TestGoogleLoginDisabled(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.googleVerifier = nil

	_, err := f.svc.LoginWithGoogleIDToken(context.Background(), "tok")
	if !errors.Is(err, ErrGoogleAuthDisabled) {
		t.Fatalf("err = %v, want ErrGoogleAuthDisabled", err)
	}
}

func TestGoogleLoginInvalidToken(t *testing.T) {
	f := newAuthFixture(t)
	f.google.err = ErrInvalidGoogleToken

	_, err := f.svc.LoginWithGoogleIDToken(context.Background(), "garbage")
	if !errors.Is(err, ErrInvalidGoogleToken) {
		t.Fatalf("err = %v, want ErrInvalidGoogleToken", err)
	}
}

func TestValidateTokenChecksSubjectStillExists(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "valid@example.com", "pw")
	ctx := context.Background()

	claims, err := f.svc.ValidateToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "valid@example.com" {
		t.Errorf("subject = %q", claims.Subject)
	}

	// A structurally valid token for an email not in the directory fails.
	otherMgr := security.NewJWTManager("budgetwise-test", "0123456789abcdef0123456789abcdef", time.Hour)
	ghostToken, _, err := otherMgr.Issue(&domain.User{Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.svc.ValidateToken(ctx, ghostToken); !errors.Is(err, security.ErrInvalidToken) {
		t.Errorf("ghost subject: err = %v, want ErrInvalidToken", err)
	}

	if _, err := f.svc.ValidateToken(ctx, "not.a.token"); !errors.Is(err, security.ErrInvalidToken) {
		t.Errorf("garbage token: err = %v, want ErrInvalidToken", err)
	}
}

func TestEmailExists(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "exists@example.com", "pw")

	ok, err := f.svc.EmailExists(context.Background(), "Exists@Example.com")
	if err != nil || !ok {
		t.Errorf("registered email: ok=%v err=%v", ok, err)
	}
	ok, err = f.svc.EmailExists(context.Background(), "absent@example.com")
	if err != nil || ok {
		t.Errorf("unregistered email: ok=%v err=%v", ok, err)
	}
}
