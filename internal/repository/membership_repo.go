package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) WithTx(tx *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: tx}
}

func (r *MembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *MembershipRepository) GetByID(ctx context.Context, id int64) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetLatestByUser 获取用户最新的一条会员记录
func (r *MembershipRepository) GetLatestByUser(ctx context.Context, userID int64) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetCurrentActive 获取用户结束日期最晚的 active 记录
func (r *MembershipRepository) GetCurrentActive(ctx context.Context, userID int64) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Order("end_date DESC").Order("id DESC").
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetLatestActiveExcept 获取除 excludeID 之外最新的有效会员记录（续费时计算起始日）
func (r *MembershipRepository) GetLatestActiveExcept(ctx context.Context, userID, excludeID int64) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id <> ? AND status = ?", userID, excludeID, model.MembershipActive).
		Order("end_date DESC").
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *MembershipRepository) HasPending(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("user_id = ? AND status = ?", userID, model.MembershipPendingPayment).
		Count(&count).Error
	return count > 0, err
}

// Activate 仅当状态仍为 pending_payment 时才激活，返回是否命中
func (r *MembershipRepository) Activate(ctx context.Context, id int64, start, end time.Time, adminID int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status = ?", id, model.MembershipPendingPayment).
		Updates(map[string]interface{}{
			"status":       model.MembershipActive,
			"start_date":   start,
			"end_date":     end,
			"activated_by": adminID,
			"activated_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkExpired 仅当状态仍为 active 时才置为过期
func (r *MembershipRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status = ?", id, model.MembershipActive).
		Update("status", model.MembershipExpired)
	return res.RowsAffected == 1, res.Error
}

// ListOverdue 列出已过期但状态仍为 active 的记录
func (r *MembershipRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", model.MembershipActive, now).
		Order("id ASC").
		Limit(limit).
		Find(&memberships).Error
	return memberships, err
}

// CountOverdue 统计待过期的记录数
func (r *MembershipRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("status = ? AND end_date < ?", model.MembershipActive, now).
		Count(&count).Error
	return count, err
}
