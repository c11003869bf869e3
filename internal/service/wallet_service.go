package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/metrics"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrInvalidAmount       = errors.New("金额必须大于零")
	ErrCurrencyMismatch    = errors.New("币种与钱包不一致")
	ErrInsufficientBalance = errors.New("钱包余额不足")
)

type WalletService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	auditRepo  *repository.AuditRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewWalletService(db *gorm.DB, walletRepo *repository.WalletRepository, auditRepo *repository.AuditRepository, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		db:         db,
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreditBonus 给用户钱包入账，钱包不存在时自动创建
func (s *WalletService) CreditBonus(ctx context.Context, userID int64, amount decimal.Decimal, currency, reference string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.creditTx(ctx, tx, userID, amount, currency, reference)
	})
}

// creditTx 在调用方事务内入账并写流水
func (s *WalletService) creditTx(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, currency, reference string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	wallets := s.walletRepo.WithTx(tx)

	existing, err := wallets.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil && existing.Currency != currency {
		return ErrCurrencyMismatch
	}

	if err := wallets.Credit(ctx, userID, amount, currency, s.now()); err != nil {
		return err
	}
	return wallets.CreateTransaction(ctx, &model.WalletTransaction{
		UserID:    userID,
		Type:      model.WalletTxCredit,
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
	})
}

// GetWallet 查询钱包，不存在时返回零值视图
func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*dto.WalletInfo, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zero := decimal.Zero.StringFixed(2)
			return &dto.WalletInfo{
				UserID:         userID,
				Balance:        zero,
				TotalEarned:    zero,
				TotalWithdrawn: zero,
			}, nil
		}
		return nil, err
	}
	return toWalletInfo(wallet), nil
}

// Withdraw 条件扣减余额，余额不足时不做任何修改
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, note string) (*dto.WalletInfo, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(2)
	note = sanitize.Text(note)

	var wallet *model.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := s.walletRepo.WithTx(tx)

		ok, err := wallets.Debit(ctx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientBalance
		}

		wallet, err = wallets.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}

		txn := &model.WalletTransaction{
			UserID:   userID,
			Type:     model.WalletTxWithdrawal,
			Amount:   amount,
			Currency: wallet.Currency,
			Note:     note,
		}
		if err := wallets.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		return s.auditRepo.WithTx(tx).Record(ctx, &userID, "wallet.withdrawn", "wallet",
			strconv.FormatInt(userID, 10), map[string]interface{}{
				"amount":         amount.StringFixed(2),
				"currency":       wallet.Currency,
				"transaction_id": txn.ID,
			})
	})
	metrics.IncWithdrawal(err == nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet withdrawal",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return toWalletInfo(wallet), nil
}

// ListTransactions 钱包流水分页
func (s *WalletService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*dto.WalletTransactionInfo, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	txns, total, err := s.walletRepo.ListTransactions(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.WalletTransactionInfo, 0, len(txns))
	for _, t := range txns {
		items = append(items, &dto.WalletTransactionInfo{
			ID:        t.ID,
			Type:      t.Type,
			Amount:    t.Amount.StringFixed(2),
			Currency:  t.Currency,
			Reference: t.Reference,
			Note:      t.Note,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items, total, nil
}

func toWalletInfo(w *model.Wallet) *dto.WalletInfo {
	return &dto.WalletInfo{
		UserID:         w.UserID,
		Balance:        w.Balance.StringFixed(2),
		TotalEarned:    w.TotalEarned.StringFixed(2),
		TotalWithdrawn: w.TotalWithdrawn.StringFixed(2),
		Currency:       w.Currency,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
