package repository

import (
	"errors"
	"time"

	"github.com/budgetwise/backend/internal/domain"

	"gorm.io/gorm"
)

var ErrOTPTokenNotFound = errors.New("otp token not found")

type OTPTokenRepository interface {
	Create(token *domain.OTPToken) error
	// FindValid returns the unverified, unexpired token matching exactly
	// (email, code, purpose), or ErrOTPTokenNotFound.
	FindValid(email, code string, purpose domain.OTPPurpose, now time.Time) (*domain.OTPToken, error)
	// Consume flips verified false -> true. The guard on verified=false makes
	// the transition one-way: a second Consume of the same token fails.
	Consume(tokenID uint, now time.Time) error
	FindVerified(email string, purpose domain.OTPPurpose) (*domain.OTPToken, error)
	DeleteByEmailAndPurpose(email string, purpose domain.OTPPurpose) error
}

type GormOTPTokenRepository struct{ db *gorm.DB }

func NewOTPTokenRepository(db *gorm.DB) OTPTokenRepository {
	return &GormOTPTokenRepository{db: db}
}

func (r *GormOTPTokenRepository) Create(token *domain.OTPToken) error {
	return r.db.Create(token).Error
}

func (r *GormOTPTokenRepository) FindValid(email, code string, purpose domain.OTPPurpose, now time.Time) (*domain.OTPToken, error) {
	var token domain.OTPToken
	err := r.db.Where("email = ? AND code = ? AND purpose = ? AND verified = ? AND expires_at > ?",
		email, code, purpose, false, now).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormOTPTokenRepository) Consume(tokenID uint, now time.Time) error {
	res := r.db.Model(&domain.OTPToken{}).
		Where("id = ? AND verified = ?", tokenID, false).
		Updates(map[string]any{"verified": true, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOTPTokenNotFound
	}
	return nil
}

func (r *GormOTPTokenRepository) FindVerified(email string, purpose domain.OTPPurpose) (*domain.OTPToken, error) {
	var token domain.OTPToken
	err := r.db.Where("email = ? AND purpose = ? AND verified = ?", email, purpose, true).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *GormOTPTokenRepository) DeleteByEmailAndPurpose(email string, purpose domain.OTPPurpose) error {
	return r.db.Where("email = ? AND purpose = ?", email, purpose).
		Delete(&domain.OTPToken{}).Error
}
