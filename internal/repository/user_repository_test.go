package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/domain"
)

func TestUserRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)

	user := &domain.User{Email: "u@example.com", PasswordHash: "hash", FirstName: "Ada", Enabled: true}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.FindByEmail("u@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.FirstName != "Ada" || found.PasswordHash != "hash" {
		t.Errorf("found = %+v", found)
	}

	ok, err := repo.ExistsByEmail("u@example.com")
	if err != nil || !ok {
		t.Errorf("ExistsByEmail registered: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ExistsByEmail("absent@example.com")
	if err != nil || ok {
		t.Errorf("ExistsByEmail absent: ok=%v err=%v", ok, err)
	}

	if _, err := repo.FindByEmail("absent@example.com"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("FindByEmail absent: err = %v, want ErrRecordNotFound", err)
	}
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)

	if err := repo.Create(&domain.User{Email: "u@example.com", PasswordHash: "old", Enabled: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdatePassword("u@example.com", "new"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	found, err := repo.FindByEmail("u@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.PasswordHash != "new" {
		t.Errorf("hash = %q", found.PasswordHash)
	}

	if err := repo.UpdatePassword("absent@example.com", "x"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("absent email: err = %v, want ErrRecordNotFound", err)
	}
}

func TestUserRepositoryRolesPreloaded(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	roles := NewRoleRepository(db)

	if err := db.Create(&domain.Role{Name: domain.RoleUser, Description: "Default role"}).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	role, err := roles.FindByName(domain.RoleUser)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}

	user := &domain.User{Email: "r@example.com", PasswordHash: "hash", Enabled: true}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.AddRole(user.ID, role.ID); err != nil {
		t.Fatalf("AddRole: %v", err)
	}

	found, err := repo.FindByEmail("r@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if len(found.Roles) != 1 || found.Roles[0].Name != domain.RoleUser {
		t.Errorf("roles = %+v", found.Roles)
	}
}
