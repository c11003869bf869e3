package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipConfig 推荐奖励配置，CountryCode 为空表示全局配置
type MembershipConfig struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	CountryCode   *string         `gorm:"size:2;index" json:"country_code,omitempty"`
	BonusAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"bonus_amount"`
	BonusCurrency string          `gorm:"size:3;not null" json:"bonus_currency"`
	EffectiveFrom time.Time       `gorm:"not null;index" json:"effective_from"`
	CreatedBy     *int64          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (MembershipConfig) TableName() string {
	return "membership_config"
}
