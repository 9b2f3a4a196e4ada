package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/budgetwise/backend/internal/domain"

	"gorm.io/gorm"
)

// Seed ensures the baseline roles exist and optionally promotes a
// bootstrap admin. Idempotent; safe to run on every startup.
func Seed(db *gorm.DB, bootstrapAdminEmail string, logger *slog.Logger) error {
	userRole := domain.Role{Name: domain.RoleUser, Description: "Default user role"}
	adminRole := domain.Role{Name: domain.RoleAdmin, Description: "Administrator role"}

	if err := db.Where("name = ?", userRole.Name).FirstOrCreate(&userRole).Error; err != nil {
		return fmt.Errorf("seed role %s: %w", userRole.Name, err)
	}
	if err := db.Where("name = ?", adminRole.Name).FirstOrCreate(&adminRole).Error; err != nil {
		return fmt.Errorf("seed role %s: %w", adminRole.Name, err)
	}

	email := strings.TrimSpace(strings.ToLower(bootstrapAdminEmail))
	if email == "" {
		return nil
	}

	var u domain.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			// The admin account is promoted once it signs up.
			logger.Info("bootstrap admin not registered yet", "email", email)
			return nil
		}
		return fmt.Errorf("find bootstrap admin: %w", err)
	}
	var count int64
	if err := db.Table("user_roles").Where("user_id = ? AND role_id = ?", u.ID, adminRole.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("check bootstrap admin role: %w", err)
	}
	if count == 0 {
		if err := db.Model(&u).Association("Roles").Append(&adminRole); err != nil {
			return fmt.Errorf("assign bootstrap admin role: %w", err)
		}
		logger.Info("bootstrap admin promoted", "email", email)
	}
	return nil
}
