package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentSubmitted = "submitted"
	PaymentApproved  = "approved"
	PaymentRejected  = "rejected"
)

type Payment struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	Reference      string          `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	UserID         int64           `gorm:"not null;index" json:"user_id"`
	MembershipID   int64           `gorm:"not null;index" json:"membership_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Method         string          `gorm:"size:20" json:"method"` // bank, bkash, nagad, cash
	TransactionRef string          `gorm:"size:100" json:"transaction_ref,omitempty"`
	ReceiptKey     string          `gorm:"size:255" json:"-"`
	Note           string          `gorm:"size:500" json:"note,omitempty"`
	Status         string          `gorm:"size:20;not null;index" json:"status"` // submitted, approved, rejected
	ReviewedBy     *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	RejectReason   string          `gorm:"size:500" json:"reject_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
