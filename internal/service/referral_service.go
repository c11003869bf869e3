package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/metrics"
	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrInvalidReferralCode = errors.New("推荐码无效")
	ErrSelfReferral        = errors.New("不能使用自己的推荐码")
	ErrReferralExists      = errors.New("该用户已有推荐记录")
)

// 推荐码校验失败原因
const (
	ReasonCodeEmpty    = "empty"
	ReasonCodeNotFound = "not_found"
	ReasonNotMember    = "not_member"
	ReasonNotVerified  = "not_verified"
)

// 奖励未发放原因
const (
	ReasonMembershipNotActive = "membership_not_active"
	ReasonNoReferral          = "no_referral"
	ReasonAlreadyPaid         = "already_paid"
)

type ReferralService struct {
	db             *gorm.DB
	profileRepo    *repository.ProfileRepository
	referralRepo   *repository.ReferralRepository
	membershipRepo *repository.MembershipRepository
	configRepo     *repository.ConfigRepository
	auditRepo      *repository.AuditRepository
	wallets        *WalletService
	notifier       *Notifier
	logger         *zap.Logger
	now            func() time.Time
}

func NewReferralService(
	db *gorm.DB,
	profileRepo *repository.ProfileRepository,
	referralRepo *repository.ReferralRepository,
	membershipRepo *repository.MembershipRepository,
	configRepo *repository.ConfigRepository,
	auditRepo *repository.AuditRepository,
	wallets *WalletService,
	notifier *Notifier,
	logger *zap.Logger,
) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		db:             db,
		profileRepo:    profileRepo,
		referralRepo:   referralRepo,
		membershipRepo: membershipRepo,
		configRepo:     configRepo,
		auditRepo:      auditRepo,
		wallets:        wallets,
		notifier:       notifier,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ValidateReferralCode 推荐码有效当且仅当所属用户是已验证的 member。无副作用
func (s *ReferralService) ValidateReferralCode(ctx context.Context, code string) (*dto.ReferralValidation, error) {
	return validateReferralCode(ctx, s.profileRepo, code)
}

func validateReferralCode(ctx context.Context, profiles *repository.ProfileRepository, code string) (*dto.ReferralValidation, error) {
	code = sanitize.ReferralCode(code)
	if code == "" {
		return &dto.ReferralValidation{Valid: false, Reason: ReasonCodeEmpty}, nil
	}

	owner, err := profiles.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.ReferralValidation{Valid: false, Reason: ReasonCodeNotFound}, nil
		}
		return nil, err
	}
	if owner.Role != model.RoleMember {
		return &dto.ReferralValidation{Valid: false, Reason: ReasonNotMember}, nil
	}
	if !owner.IsVerified {
		return &dto.ReferralValidation{Valid: false, Reason: ReasonNotVerified}, nil
	}
	return &dto.ReferralValidation{Valid: true, ReferrerID: owner.ID}, nil
}

// CreateReferral 为新用户建立推荐关系，奖励金额按当前配置快照
func (s *ReferralService) CreateReferral(ctx context.Context, referredUserID int64, code string) (*model.Referral, error) {
	var referral *model.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		referral, err = s.createReferralTx(ctx, tx, referredUserID, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	return referral, nil
}

func (s *ReferralService) createReferralTx(ctx context.Context, tx *gorm.DB, referredUserID int64, code string) (*model.Referral, error) {
	profiles := s.profileRepo.WithTx(tx)
	referrals := s.referralRepo.WithTx(tx)
	code = sanitize.ReferralCode(code)

	validation, err := validateReferralCode(ctx, profiles, code)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReferralCode, validation.Reason)
	}
	if validation.ReferrerID == referredUserID {
		return nil, ErrSelfReferral
	}

	referred, err := profiles.GetByID(ctx, referredUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	exists, err := referrals.ExistsForReferredUser(ctx, referredUserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrReferralExists
	}

	country := ""
	if referred.CountryCode != nil {
		country = *referred.CountryCode
	}
	bonus, err := loadBonusConfig(ctx, s.configRepo.WithTx(tx), country, s.now())
	if err != nil {
		return nil, err
	}

	referral := &model.Referral{
		ReferrerID:     validation.ReferrerID,
		ReferredUserID: referredUserID,
		ReferralCode:   code,
		BonusAmount:    bonus.Amount,
		BonusCurrency:  bonus.Currency,
		IsPaid:         false,
	}
	if err := referrals.Create(ctx, referral); err != nil {
		return nil, err
	}
	if err := profiles.UpdateFields(ctx, referredUserID, map[string]interface{}{"referred_by_code": code}); err != nil {
		return nil, err
	}

	if err := s.auditRepo.WithTx(tx).Record(ctx, &referredUserID, "referral.created", "referral",
		strconv.FormatInt(referral.ID, 10), map[string]interface{}{
			"referrer_id":    referral.ReferrerID,
			"referral_code":  code,
			"bonus_amount":   referral.BonusAmount.StringFixed(2),
			"bonus_currency": referral.BonusCurrency,
			"config_id":      bonus.ConfigID,
		}); err != nil {
		return nil, err
	}

	s.logger.Info("referral created",
		zap.Int64("referral_id", referral.ID),
		zap.Int64("referrer_id", referral.ReferrerID),
		zap.Int64("referred_user_id", referredUserID),
	)
	return referral, nil
}

// ProcessReferralBonus 会员已激活时发放推荐奖励，至多发放一次
func (s *ReferralService) ProcessReferralBonus(ctx context.Context, membershipID int64) (*dto.BonusResult, error) {
	var (
		result   *dto.BonusResult
		referral *model.Referral
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, referral, err = s.processReferralBonusTx(ctx, tx, membershipID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterBonus(ctx, result, referral)
	return result, nil
}

// processReferralBonusTx 在调用方事务内：标记已付、给推荐人入账、写审计
func (s *ReferralService) processReferralBonusTx(ctx context.Context, tx *gorm.DB, membershipID int64, actorID *int64) (*dto.BonusResult, *model.Referral, error) {
	referrals := s.referralRepo.WithTx(tx)

	membership, err := s.membershipRepo.WithTx(tx).GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMembershipNotFound
		}
		return nil, nil, err
	}
	if membership.Status != model.MembershipActive {
		return &dto.BonusResult{Paid: false, Reason: ReasonMembershipNotActive}, nil, nil
	}

	referral, err := referrals.GetUnpaidByReferredUser(ctx, membership.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.BonusResult{Paid: false, Reason: ReasonNoReferral}, nil, nil
		}
		return nil, nil, err
	}

	now := s.now()
	ok, err := referrals.MarkPaid(ctx, referral.ID, membership.ID, now)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return &dto.BonusResult{Paid: false, Reason: ReasonAlreadyPaid, ReferralID: referral.ID}, nil, nil
	}
	referral.IsPaid = true
	referral.MembershipID = &membership.ID
	referral.PaidAt = &now

	reference := "referral:" + strconv.FormatInt(referral.ID, 10)
	if err := s.wallets.creditTx(ctx, tx, referral.ReferrerID, referral.BonusAmount, referral.BonusCurrency, reference); err != nil {
		return nil, nil, fmt.Errorf("credit referrer wallet: %w", err)
	}

	if err := s.auditRepo.WithTx(tx).Record(ctx, actorID, "referral.bonus_paid", "referral",
		strconv.FormatInt(referral.ID, 10), map[string]interface{}{
			"referrer_id":   referral.ReferrerID,
			"membership_id": membership.ID,
			"amount":        referral.BonusAmount.StringFixed(2),
			"currency":      referral.BonusCurrency,
		}); err != nil {
		return nil, nil, err
	}

	return &dto.BonusResult{
		Paid:       true,
		ReferralID: referral.ID,
		ReferrerID: referral.ReferrerID,
		Amount:     referral.BonusAmount.StringFixed(2),
		Currency:   referral.BonusCurrency,
	}, referral, nil
}

// afterBonus 事务提交后的指标与通知
func (s *ReferralService) afterBonus(ctx context.Context, result *dto.BonusResult, referral *model.Referral) {
	if result == nil {
		return
	}
	if !result.Paid {
		metrics.IncBonusSkipped(result.Reason)
		return
	}

	amount, _ := referral.BonusAmount.Float64()
	metrics.IncBonusPaid(referral.BonusCurrency, amount)
	s.logger.Info("referral bonus paid",
		zap.Int64("referral_id", referral.ID),
		zap.Int64("referrer_id", referral.ReferrerID),
		zap.String("amount", result.Amount),
		zap.String("currency", result.Currency),
	)

	s.notifier.Notify(ctx, &pubsub.MemberEvent{
		Type:       pubsub.EventReferralBonusPaid,
		UserID:     referral.ReferrerID,
		ReferralID: referral.ID,
		Amount:     result.Amount,
		Currency:   result.Currency,
	}, map[string]string{
		"amount":   result.Amount,
		"currency": result.Currency,
	})
}

// ListForReferrer 推荐人的推荐记录与汇总
func (s *ReferralService) ListForReferrer(ctx context.Context, referrerID int64) (*dto.ReferralSummary, error) {
	profile, err := s.profileRepo.GetByID(ctx, referrerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	referrals, err := s.referralRepo.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(referrals))
	for _, r := range referrals {
		ids = append(ids, r.ReferredUserID)
	}
	names := make(map[int64]string, len(ids))
	if len(ids) > 0 {
		referred, err := s.profileRepo.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range referred {
			names[p.ID] = p.FullName
		}
	}

	summary := &dto.ReferralSummary{
		Total: len(referrals),
		Items: make([]*dto.ReferralInfo, 0, len(referrals)),
	}
	if profile.ReferralCode != nil {
		summary.ReferralCode = *profile.ReferralCode
	}
	for _, r := range referrals {
		info := &dto.ReferralInfo{
			ID:             r.ID,
			ReferredUserID: r.ReferredUserID,
			ReferredName:   names[r.ReferredUserID],
			BonusAmount:    r.BonusAmount.StringFixed(2),
			BonusCurrency:  r.BonusCurrency,
			IsPaid:         r.IsPaid,
			CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.PaidAt != nil {
			info.PaidAt = r.PaidAt.UTC().Format(time.RFC3339)
		}
		if r.IsPaid {
			summary.Paid++
		} else {
			summary.Pending++
		}
		summary.Items = append(summary.Items, info)
	}
	return summary, nil
}
