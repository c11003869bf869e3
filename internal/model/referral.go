package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Referral struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	ReferrerID     int64           `gorm:"not null;index" json:"referrer_id"`
	ReferredUserID int64           `gorm:"not null;uniqueIndex" json:"referred_user_id"`
	ReferralCode   string          `gorm:"size:20;not null" json:"referral_code"`
	BonusAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"bonus_amount"`
	BonusCurrency  string          `gorm:"size:3;not null" json:"bonus_currency"`
	IsPaid         bool            `gorm:"default:false;index" json:"is_paid"`
	MembershipID   *int64          `json:"membership_id,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Referral) TableName() string {
	return "referrals"
}
