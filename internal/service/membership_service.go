package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/metrics"
	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrMembershipNotFound      = errors.New("会员记录不存在")
	ErrMembershipNotPending    = errors.New("会员不处于待付款状态")
	ErrPendingMembershipExists = errors.New("已有待付款的会员申请")
	ErrRenewalNotAllowed       = errors.New("当前会员尚未进入续费期")
)

const expireBatchSize = 200

// ActivationResult 激活结果
type ActivationResult struct {
	Membership *model.Membership
	BonusPaid  bool
	Bonus      *dto.BonusResult
	Referral   *model.Referral
}

type MembershipService struct {
	db             *gorm.DB
	membershipRepo *repository.MembershipRepository
	profileRepo    *repository.ProfileRepository
	auditRepo      *repository.AuditRepository
	referrals      *ReferralService
	notifier       *Notifier
	cfg            config.MembershipConfig
	logger         *zap.Logger
	now            func() time.Time
}

func NewMembershipService(
	db *gorm.DB,
	membershipRepo *repository.MembershipRepository,
	profileRepo *repository.ProfileRepository,
	auditRepo *repository.AuditRepository,
	referrals *ReferralService,
	notifier *Notifier,
	cfg config.MembershipConfig,
	logger *zap.Logger,
) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = 365
	}
	if cfg.FeeCurrency == "" {
		cfg.FeeCurrency = "BDT"
	}
	return &MembershipService{
		db:             db,
		membershipRepo: membershipRepo,
		profileRepo:    profileRepo,
		auditRepo:      auditRepo,
		referrals:      referrals,
		notifier:       notifier,
		cfg:            cfg,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ActivateMembership 确认付款后激活会员。激活、用户验证、推荐奖励与审计在同一事务中完成
func (s *MembershipService) ActivateMembership(ctx context.Context, membershipID, adminID int64) (*ActivationResult, error) {
	var result *ActivationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.activateTx(ctx, tx, membershipID, adminID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterActivation(ctx, result)
	return result, nil
}

func (s *MembershipService) activateTx(ctx context.Context, tx *gorm.DB, membershipID, adminID int64) (*ActivationResult, error) {
	memberships := s.membershipRepo.WithTx(tx)

	membership, err := memberships.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if membership.Status != model.MembershipPendingPayment {
		return nil, ErrMembershipNotPending
	}

	now := s.now()
	start := now
	if membership.IsRenewal {
		prev, err := memberships.GetLatestActiveExcept(ctx, membership.UserID, membership.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if prev != nil && prev.EndDate != nil && prev.EndDate.After(now) {
			start = prev.EndDate.UTC()
		}
	}
	end := start.AddDate(0, 0, s.cfg.ValidityDays)

	ok, err := memberships.Activate(ctx, membership.ID, start, end, adminID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMembershipNotPending
	}

	if _, err := s.profileRepo.WithTx(tx).SetVerified(ctx, membership.UserID); err != nil {
		return nil, err
	}

	bonus, referral, err := s.referrals.processReferralBonusTx(ctx, tx, membership.ID, &adminID)
	if err != nil {
		return nil, err
	}

	if err := s.auditRepo.WithTx(tx).Record(ctx, &adminID, "membership.activated", "membership",
		strconv.FormatInt(membership.ID, 10), map[string]interface{}{
			"user_id":    membership.UserID,
			"start_date": start.Format(time.RFC3339),
			"end_date":   end.Format(time.RFC3339),
			"is_renewal": membership.IsRenewal,
			"bonus_paid": bonus.Paid,
		}); err != nil {
		return nil, err
	}

	activated, err := memberships.GetByID(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	return &ActivationResult{
		Membership: activated,
		BonusPaid:  bonus.Paid,
		Bonus:      bonus,
		Referral:   referral,
	}, nil
}

// Response 转换为接口返回结构
func (r *ActivationResult) Response(now time.Time) *dto.ActivationResponse {
	resp := &dto.ActivationResponse{
		Membership: toMembershipStatus(r.Membership, now),
		BonusPaid:  r.BonusPaid,
	}
	if r.Referral != nil {
		resp.ReferralID = r.Referral.ID
	}
	return resp
}

// afterActivation 事务提交后的指标与通知
func (s *MembershipService) afterActivation(ctx context.Context, result *ActivationResult) {
	m := result.Membership
	metrics.IncActivation()
	s.logger.Info("membership activated",
		zap.Int64("membership_id", m.ID),
		zap.Int64("user_id", m.UserID),
		zap.Bool("bonus_paid", result.BonusPaid),
	)

	data := map[string]string{}
	if m.EndDate != nil {
		data["end_date"] = m.EndDate.UTC().Format("2006-01-02")
	}
	s.notifier.Notify(ctx, &pubsub.MemberEvent{
		Type:         pubsub.EventMembershipActivated,
		UserID:       m.UserID,
		MembershipID: m.ID,
	}, data)

	s.referrals.afterBonus(ctx, result.Bonus, result.Referral)
}

// CheckStatus 查询当前会员状态。优先取仍在有效期内的 active 记录，
// 到期的 active 记录在此时标记为 expired，否则返回最新一条记录
func (s *MembershipService) CheckStatus(ctx context.Context, userID int64) (*dto.MembershipStatus, error) {
	now := s.now()

	active, err := s.membershipRepo.GetCurrentActive(ctx, userID)
	switch {
	case err == nil:
		if !active.IsExpiredAt(now) {
			status := toMembershipStatus(active, now)
			pending, err := s.membershipRepo.HasPending(ctx, userID)
			if err != nil {
				return nil, err
			}
			status.RenewalPending = pending
			return status, nil
		}
		expired, err := s.expire(ctx, active, nil)
		if err != nil {
			return nil, err
		}
		if expired {
			metrics.AddExpired(1)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	membership, err := s.membershipRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return toMembershipStatus(membership, now), nil
}

// expire 条件更新为 expired 并写审计，返回本次是否实际更新
func (s *MembershipService) expire(ctx context.Context, membership *model.Membership, actorID *int64) (bool, error) {
	var expired bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.membershipRepo.WithTx(tx).MarkExpired(ctx, membership.ID)
		if err != nil || !ok {
			return err
		}
		expired = true
		details := map[string]interface{}{"user_id": membership.UserID}
		if membership.EndDate != nil {
			details["end_date"] = membership.EndDate.UTC().Format(time.RFC3339)
		}
		return s.auditRepo.WithTx(tx).Record(ctx, actorID, "membership.expired", "membership",
			strconv.FormatInt(membership.ID, 10), details)
	})
	if err != nil {
		return false, err
	}

	if expired {
		data := map[string]string{}
		if membership.EndDate != nil {
			data["end_date"] = membership.EndDate.UTC().Format("2006-01-02")
		}
		s.notifier.Notify(ctx, &pubsub.MemberEvent{
			Type:         pubsub.EventMembershipExpired,
			UserID:       membership.UserID,
			MembershipID: membership.ID,
		}, data)
	}
	return expired, nil
}

// ExpireOverdue 批量将过期的 active 会员标记为 expired，返回实际更新条数
func (s *MembershipService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		batch, err := s.membershipRepo.ListOverdue(ctx, now, expireBatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		changed := 0
		for _, m := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			expired, err := s.expire(ctx, m, nil)
			if err != nil {
				return total, err
			}
			if expired {
				changed++
			}
		}
		total += changed
		if changed == 0 || len(batch) < expireBatchSize {
			break
		}
	}

	metrics.AddExpired(total)
	return total, nil
}

// CountOverdue 待过期的数量（不修改数据）
func (s *MembershipService) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.membershipRepo.CountOverdue(ctx, now)
}

// CreatePendingMembership 创建待付款会员，费用取自配置
func (s *MembershipService) CreatePendingMembership(ctx context.Context, userID int64, isRenewal bool) (*model.Membership, error) {
	var membership *model.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		membership, err = s.createPendingTx(ctx, tx, userID, isRenewal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *MembershipService) createPendingTx(ctx context.Context, tx *gorm.DB, userID int64, isRenewal bool) (*model.Membership, error) {
	memberships := s.membershipRepo.WithTx(tx)

	pending, err := memberships.HasPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingMembershipExists
	}

	membership := &model.Membership{
		UserID:      userID,
		Status:      model.MembershipPendingPayment,
		FeeAmount:   decimal.NewFromFloat(s.cfg.FeeAmount).Round(2),
		FeeCurrency: s.cfg.FeeCurrency,
		IsRenewal:   isRenewal,
	}
	if err := memberships.Create(ctx, membership); err != nil {
		return nil, err
	}
	if err := s.auditRepo.WithTx(tx).Record(ctx, &userID, "membership.created", "membership",
		strconv.FormatInt(membership.ID, 10), map[string]interface{}{
			"is_renewal": isRenewal,
			"fee_amount": membership.FeeAmount.StringFixed(2),
		}); err != nil {
		return nil, err
	}
	return membership, nil
}

// RequestRenewal 已过期或进入续费期时创建续费申请
func (s *MembershipService) RequestRenewal(ctx context.Context, userID int64) (*dto.MembershipStatus, error) {
	latest, err := s.membershipRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}

	now := s.now()
	switch latest.Status {
	case model.MembershipPendingPayment:
		return nil, ErrPendingMembershipExists
	case model.MembershipActive:
		if latest.EndDate != nil {
			windowStart := latest.EndDate.AddDate(0, 0, -s.cfg.RenewalWindowDays)
			if now.Before(windowStart) {
				return nil, ErrRenewalNotAllowed
			}
		}
	}

	membership, err := s.CreatePendingMembership(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("renewal requested", zap.Int64("user_id", userID), zap.Int64("membership_id", membership.ID))
	return toMembershipStatus(membership, now), nil
}

func toMembershipStatus(m *model.Membership, now time.Time) *dto.MembershipStatus {
	status := &dto.MembershipStatus{
		MembershipID: m.ID,
		Status:       m.Status,
		IsActive:     m.Status == model.MembershipActive && !m.IsExpiredAt(now),
		FeeAmount:    m.FeeAmount.StringFixed(2),
		FeeCurrency:  m.FeeCurrency,
		IsRenewal:    m.IsRenewal,
	}
	if m.StartDate != nil {
		status.StartDate = m.StartDate.UTC().Format(time.RFC3339)
	}
	if m.EndDate != nil {
		status.EndDate = m.EndDate.UTC().Format(time.RFC3339)
		if status.IsActive {
			status.DaysRemaining = int(math.Ceil(m.EndDate.Sub(now).Hours() / 24))
		}
	}
	return status
}
