package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/jwt"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
)

const (
	referralCodePrefix   = "MS"
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeAttempts = 5
)

type AuthService struct {
	db          *gorm.DB
	profileRepo *repository.ProfileRepository
	memberships *MembershipService
	referrals   *ReferralService
	jwtCfg      config.JWTConfig
	logger      *zap.Logger
}

func NewAuthService(
	db *gorm.DB,
	profileRepo *repository.ProfileRepository,
	memberships *MembershipService,
	referrals *ReferralService,
	jwtCfg config.JWTConfig,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		db:          db,
		profileRepo: profileRepo,
		memberships: memberships,
		referrals:   referrals,
		jwtCfg:      jwtCfg,
		logger:      logger,
	}
}

// Register 注册：资料、待付款会员、推荐关系在同一事务中创建。
// 推荐码无效时在写入任何数据之前失败
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	referralCode := sanitize.ReferralCode(req.ReferralCode)

	exists, err := s.profileRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	if referralCode != "" {
		validation, err := s.referrals.ValidateReferralCode(ctx, referralCode)
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, fmt.Errorf("%w: %s", ErrInvalidReferralCode, validation.Reason)
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ownCode, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	profile := &model.Profile{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FullName:     sanitize.Text(req.FullName),
		Role:         model.RoleMember,
		ReferralCode: &ownCode,
	}
	if country := sanitize.CountryCode(req.CountryCode); country != "" {
		profile.CountryCode = &country
	}

	resp := &dto.RegisterResponse{ReferralCode: ownCode}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.profileRepo.WithTx(tx).Create(ctx, profile); err != nil {
			return err
		}
		membership, err := s.memberships.createPendingTx(ctx, tx, profile.ID, false)
		if err != nil {
			return err
		}
		resp.UserID = profile.ID
		resp.MembershipID = membership.ID

		if referralCode == "" {
			return nil
		}
		if _, err := s.referrals.createReferralTx(ctx, tx, profile.ID, referralCode); err != nil {
			return err
		}
		resp.Referred = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", resp.UserID),
		zap.Bool("referred", resp.Referred),
	)
	return resp, nil
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	profile, err := s.profileRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(profile.ID, profile.Role, s.jwtCfg.Secret, s.jwtCfg.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token:   token,
		Profile: toProfileInfo(profile),
	}, nil
}

func (s *AuthService) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		exists, err := s.profileRepo.ExistsByReferralCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("生成推荐码失败")
}

// generateReferralCode MS + 8 位大写字母数字
func generateReferralCode() (string, error) {
	var b strings.Builder
	b.WriteString(referralCodePrefix)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
