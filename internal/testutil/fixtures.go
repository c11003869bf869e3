package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestProfile 创建测试用户资料
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	n := nextSeq()
	code := fmt.Sprintf("MSTEST%04d", n)
	profile := &model.Profile{
		Email:        fmt.Sprintf("member_%d@example.com", n),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		FullName:     fmt.Sprintf("Test Member %d", n),
		Role:         model.RoleMember,
		ReferralCode: &code,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Email = email
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.PasswordHash = hash
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Role = role
	}
}

// WithVerified 设置认证状态
func WithVerified(verified bool) func(*model.Profile) {
	return func(p *model.Profile) {
		p.IsVerified = verified
	}
}

// WithCountry 设置国家代码
func WithCountry(countryCode string) func(*model.Profile) {
	return func(p *model.Profile) {
		cc := strings.ToUpper(countryCode)
		p.CountryCode = &cc
	}
}

// WithReferralCode 设置本人推荐码
func WithReferralCode(code string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.ReferralCode = &code
	}
}

// TestReferrer 创建一个可用作推荐人的已认证会员
func TestReferrer(t *testing.T, db *gorm.DB, code string) *model.Profile {
	t.Helper()
	return TestProfile(t, db, WithReferralCode(code), WithVerified(true))
}

// TestMembership 创建测试会员记录（默认待缴费）
func TestMembership(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Membership)) *model.Membership {
	t.Helper()

	membership := &model.Membership{
		UserID:      userID,
		Status:      model.MembershipPendingPayment,
		FeeAmount:   decimal.NewFromInt(1000),
		FeeCurrency: "BDT",
	}

	for _, opt := range opts {
		opt(membership)
	}

	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("Failed to create test membership: %v", err)
	}

	return membership
}

// WithMembershipStatus 设置状态
func WithMembershipStatus(status string) func(*model.Membership) {
	return func(m *model.Membership) {
		m.Status = status
	}
}

// WithValidity 设置有效期
func WithValidity(start, end time.Time) func(*model.Membership) {
	return func(m *model.Membership) {
		start, end = start.UTC(), end.UTC()
		m.StartDate = &start
		m.EndDate = &end
	}
}

// WithRenewal 标记为续费
func WithRenewal() func(*model.Membership) {
	return func(m *model.Membership) {
		m.IsRenewal = true
	}
}

// TestBonusConfig 创建奖励配置，countryCode 为空表示全局
func TestBonusConfig(t *testing.T, db *gorm.DB, countryCode string, amount int64, currency string, effectiveFrom time.Time) *model.MembershipConfig {
	t.Helper()

	cfg := &model.MembershipConfig{
		BonusAmount:   decimal.NewFromInt(amount),
		BonusCurrency: currency,
		EffectiveFrom: effectiveFrom.UTC(),
	}
	if countryCode != "" {
		cc := strings.ToUpper(countryCode)
		cfg.CountryCode = &cc
	}

	if err := db.Create(cfg).Error; err != nil {
		t.Fatalf("Failed to create test bonus config: %v", err)
	}

	return cfg
}

// TestReferral 创建未发放的推荐记录
func TestReferral(t *testing.T, db *gorm.DB, referrerID, referredUserID int64, amount int64, currency string) *model.Referral {
	t.Helper()

	referral := &model.Referral{
		ReferrerID:     referrerID,
		ReferredUserID: referredUserID,
		ReferralCode:   fmt.Sprintf("MSREF%04d", nextSeq()),
		BonusAmount:    decimal.NewFromInt(amount),
		BonusCurrency:  currency,
	}

	if err := db.Create(referral).Error; err != nil {
		t.Fatalf("Failed to create test referral: %v", err)
	}

	return referral
}

// TestWallet 创建钱包
func TestWallet(t *testing.T, db *gorm.DB, userID int64, balance, earned, withdrawn int64, currency string) *model.Wallet {
	t.Helper()

	wallet := &model.Wallet{
		UserID:         userID,
		Balance:        decimal.NewFromInt(balance),
		TotalEarned:    decimal.NewFromInt(earned),
		TotalWithdrawn: decimal.NewFromInt(withdrawn),
		Currency:       currency,
	}

	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("Failed to create test wallet: %v", err)
	}

	return wallet
}

// TestPayment 创建已提交的缴费记录
func TestPayment(t *testing.T, db *gorm.DB, userID, membershipID int64) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		Reference:    fmt.Sprintf("ref-%d", nextSeq()),
		UserID:       userID,
		MembershipID: membershipID,
		Amount:       decimal.NewFromInt(1000),
		Currency:     "BDT",
		Method:       "bkash",
		Status:       model.PaymentSubmitted,
	}

	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}
