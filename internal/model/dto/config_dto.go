package dto

// CreateBonusConfigRequest 新增奖励配置
type CreateBonusConfigRequest struct {
	CountryCode   string `json:"country_code" binding:"omitempty,len=2"`
	BonusAmount   string `json:"bonus_amount" binding:"required"`
	BonusCurrency string `json:"bonus_currency" binding:"required,len=3"`
	EffectiveFrom string `json:"effective_from" binding:"omitempty"` // RFC3339，默认当前时间
}

// BonusConfigInfo 奖励配置
type BonusConfigInfo struct {
	ID            int64  `json:"id"`
	CountryCode   string `json:"country_code,omitempty"`
	BonusAmount   string `json:"bonus_amount"`
	BonusCurrency string `json:"bonus_currency"`
	EffectiveFrom string `json:"effective_from"`
}
