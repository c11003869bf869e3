package dto

// WalletInfo 钱包信息
type WalletInfo struct {
	UserID         int64  `json:"user_id"`
	Balance        string `json:"balance"`
	TotalEarned    string `json:"total_earned"`
	TotalWithdrawn string `json:"total_withdrawn"`
	Currency       string `json:"currency"`
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
	Note   string `json:"note" binding:"omitempty,max=255"`
}

// WalletTransactionInfo 钱包流水
type WalletTransactionInfo struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}
