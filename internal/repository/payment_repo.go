package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) HasSubmitted(ctx context.Context, membershipID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("membership_id = ? AND status = ?", membershipID, model.PaymentSubmitted).
		Count(&count).Error
	return count > 0, err
}

// Review 仅处理 submitted 状态的记录，返回是否命中
func (r *PaymentRepository) Review(ctx context.Context, id int64, status string, reviewerID int64, reason string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentSubmitted).
		Updates(map[string]interface{}{
			"status":        status,
			"reviewed_by":   reviewerID,
			"reviewed_at":   now,
			"reject_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.Payment, int64, error) {
	var items []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("status = ?", status)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("id ASC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}
