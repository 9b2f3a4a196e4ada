package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/repository"
	"github.com/budgetwise/backend/internal/security"
)

// SubscriptionService updates a user's plan and re-issues their credential
// so the new plan is reflected in the claims immediately.
type SubscriptionService struct {
	jwtMgr   *security.JWTManager
	userRepo repository.UserRepository
}

func NewSubscriptionService(jwtMgr *security.JWTManager, userRepo repository.UserRepository) *SubscriptionService {
	return &SubscriptionService{jwtMgr: jwtMgr, userRepo: userRepo}
}

// Upgrade sets the plan and period on the user identified by email. Yearly
// subscriptions expire one year out, anything else one month out. Plan and
// period are stored uppercased.
func (s *SubscriptionService) Upgrade(ctx context.Context, email, plan, period string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.SubscriptionPlan = strings.ToUpper(plan)
	user.SubscriptionPeriod = strings.ToUpper(period)
	expiry := time.Now().AddDate(0, 1, 0)
	if user.SubscriptionPeriod == "YEARLY" {
		expiry = time.Now().AddDate(1, 0, 0)
	}
	user.SubscriptionExpiry = &expiry

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	token, expiresAt, err := s.jwtMgr.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
