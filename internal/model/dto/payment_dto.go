package dto

// SubmitPaymentRequest 提交缴费凭证（multipart 表单字段）
type SubmitPaymentRequest struct {
	MembershipID   int64  `form:"membership_id" binding:"required"`
	Amount         string `form:"amount" binding:"required"`
	Currency       string `form:"currency" binding:"required,len=3"`
	Method         string `form:"method" binding:"required,oneof=bank bkash nagad cash"`
	TransactionRef string `form:"transaction_ref" binding:"omitempty,max=100"`
	Note           string `form:"note" binding:"omitempty,max=500"`
}

// RejectPaymentRequest 驳回请求
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentInfo 缴费记录
type PaymentInfo struct {
	ID             int64  `json:"id"`
	Reference      string `json:"reference"`
	UserID         int64  `json:"user_id"`
	MembershipID   int64  `json:"membership_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	ReceiptURL     string `json:"receipt_url,omitempty"`
	Note           string `json:"note,omitempty"`
	Status         string `json:"status"`
	RejectReason   string `json:"reject_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
}
