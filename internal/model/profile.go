package model

import (
	"time"
)

const (
	RoleMember = "member"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

type Profile struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"size:255;not null" json:"-"`
	FullName       string    `gorm:"size:100" json:"full_name"`
	Role           string    `gorm:"size:20;default:member;index" json:"role"` // member, agent, admin
	CountryCode    *string   `gorm:"size:2;index" json:"country_code,omitempty"`
	ReferralCode   *string   `gorm:"size:20;uniqueIndex" json:"referral_code,omitempty"`
	ReferredByCode *string   `gorm:"size:20" json:"referred_by_code,omitempty"`
	IsVerified     bool      `gorm:"default:false" json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
