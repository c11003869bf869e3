package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/sanitize"
	"github.com/migratesafely/membership_server/internal/repository"
)

var (
	ErrPaymentNotFound         = errors.New("缴费记录不存在")
	ErrPaymentNotSubmitted     = errors.New("缴费记录已审核")
	ErrPaymentAlreadySubmitted = errors.New("该会员已有待审核的缴费凭证")
	ErrPaymentAmountMismatch   = errors.New("缴费金额或币种与会员费不符")
	ErrInvalidReceipt          = errors.New("凭证文件格式不支持")
	ErrReceiptTooLarge         = errors.New("凭证文件过大")
	ErrStorageUnavailable      = errors.New("文件存储未配置")
)

var defaultReceiptExtensions = []string{".jpg", ".jpeg", ".png", ".pdf"}

const receiptURLExpire = int64(3600)

// ReceiptStorage 付款凭证存储
type ReceiptStorage interface {
	PutReceipt(userID int64, data []byte, ext string) (string, error)
	SignedURL(objectKey string, expireSeconds int64) (string, error)
	Delete(objectKey string) error
}

// SubmitPaymentInput 缴费凭证提交参数
type SubmitPaymentInput struct {
	MembershipID   int64
	Amount         decimal.Decimal
	Currency       string
	Method         string
	TransactionRef string
	Note           string
}

type PaymentService struct {
	db             *gorm.DB
	paymentRepo    *repository.PaymentRepository
	membershipRepo *repository.MembershipRepository
	auditRepo      *repository.AuditRepository
	memberships    *MembershipService
	storage        ReceiptStorage
	notifier       *Notifier
	uploadCfg      config.UploadConfig
	logger         *zap.Logger
	now            func() time.Time
}

func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	membershipRepo *repository.MembershipRepository,
	auditRepo *repository.AuditRepository,
	memberships *MembershipService,
	storage ReceiptStorage,
	notifier *Notifier,
	uploadCfg config.UploadConfig,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(uploadCfg.AllowedExtensions) == 0 {
		uploadCfg.AllowedExtensions = defaultReceiptExtensions
	}
	if uploadCfg.MaxSize <= 0 {
		uploadCfg.MaxSize = 5 * 1024 * 1024
	}
	return &PaymentService{
		db:             db,
		paymentRepo:    paymentRepo,
		membershipRepo: membershipRepo,
		auditRepo:      auditRepo,
		memberships:    memberships,
		storage:        storage,
		notifier:       notifier,
		uploadCfg:      uploadCfg,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SubmitPayment 会员上传线下付款凭证，等待后台审核
func (s *PaymentService) SubmitPayment(ctx context.Context, userID int64, in *SubmitPaymentInput, receipt io.Reader, filename string) (*dto.PaymentInfo, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowedExtension(ext) {
		return nil, ErrInvalidReceipt
	}

	membership, err := s.membershipRepo.GetByID(ctx, in.MembershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if membership.UserID != userID {
		return nil, ErrMembershipNotFound
	}
	if membership.Status != model.MembershipPendingPayment {
		return nil, ErrMembershipNotPending
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency != membership.FeeCurrency || in.Amount.LessThan(membership.FeeAmount) {
		return nil, ErrPaymentAmountMismatch
	}

	submitted, err := s.paymentRepo.HasSubmitted(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, ErrPaymentAlreadySubmitted
	}

	data, err := io.ReadAll(io.LimitReader(receipt, s.uploadCfg.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.uploadCfg.MaxSize {
		return nil, ErrReceiptTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidReceipt
	}

	key, err := s.storage.PutReceipt(userID, data, ext)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		Reference:      uuid.NewString(),
		UserID:         userID,
		MembershipID:   membership.ID,
		Amount:         in.Amount.Round(2),
		Currency:       currency,
		Method:         in.Method,
		TransactionRef: sanitize.Text(in.TransactionRef),
		ReceiptKey:     key,
		Note:           sanitize.Text(in.Note),
		Status:         model.PaymentSubmitted,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		return s.auditRepo.WithTx(tx).Record(ctx, &userID, "payment.submitted", "payment",
			strconv.FormatInt(payment.ID, 10), map[string]interface{}{
				"membership_id": membership.ID,
				"amount":        payment.Amount.StringFixed(2),
				"currency":      payment.Currency,
				"method":        payment.Method,
			})
	})
	if err != nil {
		if delErr := s.storage.Delete(key); delErr != nil {
			s.logger.Warn("remove orphan receipt failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("payment submitted",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("membership_id", membership.ID),
		zap.Int64("user_id", userID),
	)
	return s.toPaymentInfo(payment), nil
}

// ApprovePayment 审核通过并在同一事务中激活会员
func (s *PaymentService) ApprovePayment(ctx context.Context, paymentID, adminID int64) (*ActivationResult, error) {
	var result *ActivationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.reviewTx(ctx, tx, paymentID, adminID, model.PaymentApproved, "")
		if err != nil {
			return err
		}
		result, err = s.memberships.activateTx(ctx, tx, payment.MembershipID, adminID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.memberships.afterActivation(ctx, result)
	return result, nil
}

// RejectPayment 驳回凭证，会员保持待付款状态
func (s *PaymentService) RejectPayment(ctx context.Context, paymentID, adminID int64, reason string) error {
	reason = sanitize.Text(reason)

	var payment *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.reviewTx(ctx, tx, paymentID, adminID, model.PaymentRejected, reason)
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, &pubsub.MemberEvent{
		Type:         pubsub.EventPaymentRejected,
		UserID:       payment.UserID,
		MembershipID: payment.MembershipID,
		PaymentID:    payment.ID,
	}, map[string]string{
		"reference": payment.Reference,
		"reason":    reason,
	})
	return nil
}

func (s *PaymentService) reviewTx(ctx context.Context, tx *gorm.DB, paymentID, adminID int64, status, reason string) (*model.Payment, error) {
	payments := s.paymentRepo.WithTx(tx)

	payment, err := payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	ok, err := payments.Review(ctx, paymentID, status, adminID, reason, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentNotSubmitted
	}
	payment.Status = status
	payment.RejectReason = reason

	details := map[string]interface{}{"membership_id": payment.MembershipID}
	if reason != "" {
		details["reason"] = reason
	}
	if err := s.auditRepo.WithTx(tx).Record(ctx, &adminID, "payment."+status, "payment",
		strconv.FormatInt(paymentID, 10), details); err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPending 待审核队列，凭证链接为临时签名 URL
func (s *PaymentService) ListPending(ctx context.Context, page, pageSize int) ([]*dto.PaymentInfo, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	payments, total, err := s.paymentRepo.ListByStatus(ctx, model.PaymentSubmitted, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.PaymentInfo, 0, len(payments))
	for _, p := range payments {
		items = append(items, s.toPaymentInfo(p))
	}
	return items, total, nil
}

func (s *PaymentService) allowedExtension(ext string) bool {
	for _, allowed := range s.uploadCfg.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (s *PaymentService) toPaymentInfo(p *model.Payment) *dto.PaymentInfo {
	info := &dto.PaymentInfo{
		ID:             p.ID,
		Reference:      p.Reference,
		UserID:         p.UserID,
		MembershipID:   p.MembershipID,
		Amount:         p.Amount.StringFixed(2),
		Currency:       p.Currency,
		Method:         p.Method,
		TransactionRef: p.TransactionRef,
		Note:           p.Note,
		Status:         p.Status,
		RejectReason:   p.RejectReason,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.storage != nil && p.ReceiptKey != "" {
		url, err := s.storage.SignedURL(p.ReceiptKey, receiptURLExpire)
		if err != nil {
			s.logger.Warn("sign receipt url failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		} else {
			info.ReceiptURL = url
		}
	}
	return info
}
