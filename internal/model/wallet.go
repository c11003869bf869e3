package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletTxCredit     = "credit"
	WalletTxWithdrawal = "withdrawal"
)

type Wallet struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	UserID         int64           `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"balance"`
	TotalEarned    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_earned"`
	TotalWithdrawn decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_withdrawn"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletTransaction 钱包流水，与余额变更同一事务写入
type WalletTransaction struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	UserID    int64           `gorm:"not null;index" json:"user_id"`
	Type      string          `gorm:"size:20;not null" json:"type"` // credit, withdrawal
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency  string          `gorm:"size:3;not null" json:"currency"`
	Reference string          `gorm:"size:64;index" json:"reference"`
	Note      string          `gorm:"size:255" json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
