package repository

import (
	"github.com/budgetwise/backend/internal/domain"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByEmail(email string) (*domain.User, error)
	ExistsByEmail(email string) (bool, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
	UpdatePassword(email, passwordHash string) error
	AddRole(userID, roleID uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Preload("Roles").Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *GormUserRepository) Create(user *domain.User) error { return r.db.Create(user).Error }
func (r *GormUserRepository) Update(user *domain.User) error { return r.db.Save(user).Error }

func (r *GormUserRepository) UpdatePassword(email, passwordHash string) error {
	res := r.db.Model(&domain.User{}).Where("email = ?", email).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormUserRepository) AddRole(userID, roleID uint) error {
	u := domain.User{ID: userID}
	role := domain.Role{ID: roleID}
	return r.db.Model(&u).Association("Roles").Append(&role)
}
