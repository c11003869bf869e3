package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/migratesafely/membership_server/internal/model"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Credit 单条 upsert 原子累加 balance 与 total_earned，钱包不存在时按 amount 创建
func (r *WalletRepository) Credit(ctx context.Context, userID int64, amount decimal.Decimal, currency string, now time.Time) error {
	wallet := &model.Wallet{
		UserID:         userID,
		Balance:        amount,
		TotalEarned:    amount,
		TotalWithdrawn: decimal.Zero,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":      gorm.Expr("wallets.balance + ?", amount),
			"total_earned": gorm.Expr("wallets.total_earned + ?", amount),
			"updated_at":   now,
		}),
	}).Create(wallet).Error
}

// Debit 余额充足时原子扣减并累加 total_withdrawn，返回是否扣减成功
func (r *WalletRepository) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance - ?", amount),
			"total_withdrawn": gorm.Expr("total_withdrawn + ?", amount),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *WalletRepository) CreateTransaction(ctx context.Context, txn *model.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *WalletRepository) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	var items []*model.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}
