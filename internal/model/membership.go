package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MembershipPendingPayment = "pending_payment"
	MembershipActive         = "active"
	MembershipExpired        = "expired"
)

type Membership struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	Status      string          `gorm:"size:20;not null;index" json:"status"` // pending_payment, active, expired
	FeeAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"fee_amount"`
	FeeCurrency string          `gorm:"size:3;not null" json:"fee_currency"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `gorm:"index" json:"end_date,omitempty"`
	IsRenewal   bool            `gorm:"default:false" json:"is_renewal"`
	ActivatedBy *int64          `json:"activated_by,omitempty"`
	ActivatedAt *time.Time      `json:"activated_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

// IsExpiredAt 有效期已过但状态尚未刷新
func (m *Membership) IsExpiredAt(now time.Time) bool {
	return m.Status == MembershipActive && m.EndDate != nil && m.EndDate.Before(now)
}
