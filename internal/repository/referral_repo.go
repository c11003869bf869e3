package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

func (r *ReferralRepository) Create(ctx context.Context, referral *model.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *ReferralRepository) GetByID(ctx context.Context, id int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) GetByReferredUser(ctx context.Context, userID int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("referred_user_id = ?", userID).First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) GetUnpaidByReferredUser(ctx context.Context, userID int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ? AND is_paid = ?", userID, false).
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) ExistsForReferredUser(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Referral{}).Where("referred_user_id = ?", userID).Count(&count).Error
	return count > 0, err
}

// MarkPaid is_paid 只能由 false 翻转为 true 一次，返回本次调用是否完成翻转
func (r *ReferralRepository) MarkPaid(ctx context.Context, id, membershipID int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Referral{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]interface{}{
			"is_paid":       true,
			"membership_id": membershipID,
			"paid_at":       now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*model.Referral, error) {
	var referrals []*model.Referral
	err := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).Order("id DESC").Find(&referrals).Error
	return referrals, err
}
