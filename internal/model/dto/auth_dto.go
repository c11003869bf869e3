package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8,max=64"`
	FullName     string `json:"full_name" binding:"required,max=100"`
	CountryCode  string `json:"country_code" binding:"omitempty,len=2"`
	ReferralCode string `json:"referral_code" binding:"omitempty,max=20"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID       int64  `json:"user_id"`
	MembershipID int64  `json:"membership_id"`
	ReferralCode string `json:"referral_code"`
	Referred     bool   `json:"referred"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token   string       `json:"token"`
	Profile *ProfileInfo `json:"profile"`
}

// ProfileInfo 用户资料（返回给前端）
type ProfileInfo struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	CountryCode  string `json:"country_code,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
	IsVerified   bool   `json:"is_verified"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty" binding:"omitempty,max=100"`
	CountryCode *string `json:"country_code,omitempty" binding:"omitempty,len=2"`
}
