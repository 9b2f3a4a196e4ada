package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/budgetwise/backend/internal/domain"
	"github.com/budgetwise/backend/internal/security"
)

func newSubscriptionFixture(t *testing.T) (*SubscriptionService, *fakeUserRepo, *security.JWTManager) {
	t.Helper()
	users := newFakeUserRepo()
	jwtMgr := security.NewJWTManager("budgetwise-test", "0123456789abcdef0123456789abcdef", time.Hour)
	return NewSubscriptionService(jwtMgr, users), users, jwtMgr
}

func TestUpgradeYearly(t *testing.T) {
	svc, users, jwtMgr := newSubscriptionFixture(t)
	if err := users.Create(&domain.User{Email: "sub@example.com", PasswordHash: "x", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := time.Now()
	res, err := svc.Upgrade(context.Background(), "sub@example.com", "premium", "yearly")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	if res.User.SubscriptionPlan != "PREMIUM" || res.User.SubscriptionPeriod != "YEARLY" {
		t.Errorf("plan/period = %q/%q, want uppercased", res.User.SubscriptionPlan, res.User.SubscriptionPeriod)
	}
	if res.User.SubscriptionExpiry == nil {
		t.Fatal("expiry not set")
	}
	wantExpiry := before.AddDate(1, 0, 0)
	if diff := res.User.SubscriptionExpiry.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry = %v, want about one year out", res.User.SubscriptionExpiry)
	}

	// Upgrade is persisted and the re-issued credential carries the plan.
	stored, _ := users.FindByEmail("sub@example.com")
	if stored.SubscriptionPlan != "PREMIUM" {
		t.Errorf("stored plan = %q", stored.SubscriptionPlan)
	}
	claims, err := jwtMgr.Parse(res.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.SubscriptionPlan != "PREMIUM" || claims.SubscriptionPeriod != "YEARLY" {
		t.Errorf("claims plan/period = %q/%q", claims.SubscriptionPlan, claims.SubscriptionPeriod)
	}
}

func TestUpgradeMonthlyExpiry(t *testing.T) {
	svc, users, _ := newSubscriptionFixture(t)
	if err := users.Create(&domain.User{Email: "m@example.com", PasswordHash: "x", Enabled: true}); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := time.Now()
	res, err := svc.Upgrade(context.Background(), "m@example.com", "PREMIUM", "MONTHLY")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	wantExpiry := before.AddDate(0, 1, 0)
	if diff := res.User.SubscriptionExpiry.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry = %v, want about one month out", res.User.SubscriptionExpiry)
	}
}

func TestUpgradeUnknownUser(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)
	_, err := svc.Upgrade(context.Background(), "nobody@example.com", "PREMIUM", "YEARLY")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
