package dto

// MembershipStatus 会员状态
type MembershipStatus struct {
	MembershipID  int64  `json:"membership_id"`
	Status        string `json:"status"`
	IsActive      bool   `json:"is_active"`
	FeeAmount     string `json:"fee_amount"`
	FeeCurrency   string `json:"fee_currency"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	DaysRemaining int    `json:"days_remaining"`
	IsRenewal     bool   `json:"is_renewal"`
	// 有效期内已提交续费申请
	RenewalPending bool `json:"renewal_pending"`
}

// ActivationResponse 激活结果
type ActivationResponse struct {
	Membership *MembershipStatus `json:"membership"`
	BonusPaid  bool              `json:"bonus_paid"`
	ReferralID int64             `json:"referral_id,omitempty"`
}
