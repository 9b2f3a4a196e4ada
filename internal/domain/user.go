package domain

import "time"

type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash       string     `gorm:"size:1024;not null" json:"-"`
	FirstName          string     `gorm:"size:100" json:"first_name"`
	LastName           string     `gorm:"size:100" json:"last_name"`
	Department         string     `gorm:"size:100" json:"department"`
	Gender             string     `gorm:"size:32" json:"gender"`
	SubscriptionPlan   string     `gorm:"size:32;not null;default:FREE" json:"subscription_plan"`
	SubscriptionPeriod string     `gorm:"size:32" json:"subscription_period"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
	Enabled            bool       `gorm:"not null;default:true" json:"enabled"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Roles              []Role     `gorm:"many2many:user_roles" json:"roles,omitempty"`
}
