package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/jwt"
	"github.com/migratesafely/membership_server/internal/testutil"
)

func registerReq(email, country, code string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:        email,
		Password:     "password123",
		FullName:     "New Member",
		CountryCode:  country,
		ReferralCode: code,
	}
}

func TestAuthService_Register_WithoutReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, registerReq("  Solo@Example.com ", "bd", ""))
	require.NoError(t, err)
	assert.False(t, resp.Referred)
	assert.True(t, strings.HasPrefix(resp.ReferralCode, "MS"))
	assert.Len(t, resp.ReferralCode, 10)

	profile, err := env.profileRepo.GetByID(ctx, resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, "solo@example.com", profile.Email)
	assert.Equal(t, model.RoleMember, profile.Role)
	assert.False(t, profile.IsVerified)
	require.NotNil(t, profile.CountryCode)
	assert.Equal(t, "BD", *profile.CountryCode)
	assert.Nil(t, profile.ReferredByCode)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte("password123")))

	m, err := env.membershipRepo.GetByID(ctx, resp.MembershipID)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipPendingPayment, m.Status)
	assert.Equal(t, resp.UserID, m.UserID)
}

func TestAuthService_Register_WithReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.TestBonusConfig(t, env.db, "", 500, "BDT", epoch)
	referrer := testutil.TestReferrer(t, env.db, "MSAUTHREF1")

	resp, err := env.auth.Register(ctx, registerReq("referred@example.com", "GB", "msauthref1"))
	require.NoError(t, err)
	assert.True(t, resp.Referred)

	referral, err := env.referralRepo.GetByReferredUser(ctx, resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, referral.ReferrerID)
	assert.Equal(t, "500.00", referral.BonusAmount.StringFixed(2))
}

func TestAuthService_Register_InvalidCodeWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.TestProfile(t, env.db, testutil.WithReferralCode("MSUNVER001"))

	for _, code := range []string{"MSDOESNOT1", "MSUNVER001"} {
		_, err := env.auth.Register(ctx, registerReq("ghost@example.com", "BD", code))
		assert.ErrorIs(t, err, ErrInvalidReferralCode)
	}

	exists, err := env.profileRepo.ExistsByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	var memberships int64
	require.NoError(t, env.db.Model(&model.Membership{}).Count(&memberships).Error)
	assert.Zero(t, memberships)
}

// 推荐码有效但没有任何奖励配置时，注册整体回滚
func TestAuthService_Register_RollsBackWithoutConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.TestReferrer(t, env.db, "MSNOCONF01")

	_, err := env.auth.Register(ctx, registerReq("noconf@example.com", "BD", "MSNOCONF01"))
	assert.ErrorIs(t, err, ErrBonusConfigNotFound)

	exists, err := env.profileRepo.ExistsByEmail(ctx, "noconf@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.TestProfile(t, env.db, testutil.WithEmail("taken@example.com"))

	_, err := env.auth.Register(ctx, registerReq("TAKEN@example.com", "", ""))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := testutil.TestProfile(t, env.db,
		testutil.WithEmail("admin@example.com"),
		testutil.WithPasswordHash(string(hash)),
		testutil.WithRole(model.RoleAdmin))

	resp, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "Admin@Example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, resp.Profile.ID)

	claims, err := jwt.ParseToken(resp.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	_, err = env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, 10)
		assert.True(t, strings.HasPrefix(code, "MS"))
		for _, c := range code[2:] {
			assert.Contains(t, referralCodeAlphabet, string(c))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
