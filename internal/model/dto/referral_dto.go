package dto

// ReferralValidation 推荐码校验结果
type ReferralValidation struct {
	Valid      bool   `json:"valid"`
	ReferrerID int64  `json:"referrer_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ReferralInfo 推荐记录
type ReferralInfo struct {
	ID             int64  `json:"id"`
	ReferredUserID int64  `json:"referred_user_id"`
	ReferredName   string `json:"referred_name,omitempty"`
	BonusAmount    string `json:"bonus_amount"`
	BonusCurrency  string `json:"bonus_currency"`
	IsPaid         bool   `json:"is_paid"`
	PaidAt         string `json:"paid_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ReferralSummary 推荐人汇总
type ReferralSummary struct {
	ReferralCode string          `json:"referral_code"`
	Total        int             `json:"total"`
	Paid         int             `json:"paid"`
	Pending      int             `json:"pending"`
	Items        []*ReferralInfo `json:"items"`
}

// BonusResult 奖励发放结果
type BonusResult struct {
	Paid       bool   `json:"paid"`
	Reason     string `json:"reason,omitempty"`
	ReferralID int64  `json:"referral_id,omitempty"`
	ReferrerID int64  `json:"referrer_id,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
}
