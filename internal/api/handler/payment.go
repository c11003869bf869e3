package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/response"
	"github.com/migratesafely/membership_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Submit 上传付款凭证
// POST /api/v1/payments (multipart: receipt + 表单字段)
func (h *PaymentHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SubmitPaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		response.ParamError(c, "金额格式错误")
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		response.ParamError(c, "请上传付款凭证")
		return
	}
	defer file.Close()

	payment, err := h.paymentService.SubmitPayment(c.Request.Context(), userID, &service.SubmitPaymentInput{
		MembershipID:   req.MembershipID,
		Amount:         amount,
		Currency:       req.Currency,
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
		Note:           req.Note,
	}, file, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMembershipNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrMembershipNotPending):
			response.ConflictError(c, err.Error())
		case errors.Is(err, service.ErrPaymentAlreadySubmitted):
			response.DuplicateError(c, err.Error())
		case errors.Is(err, service.ErrPaymentAmountMismatch),
			errors.Is(err, service.ErrInvalidReceipt),
			errors.Is(err, service.ErrReceiptTooLarge):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "凭证上传失败")
		}
		return
	}

	response.SuccessWithMessage(c, "凭证已提交，等待审核", payment)
}

// ListPending 待审核凭证
// GET /api/v1/admin/payments
func (h *PaymentHandler) ListPending(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.paymentService.ListPending(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Approve 审核通过并激活会员
// POST /api/v1/admin/payments/:id/approve
func (h *PaymentHandler) Approve(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的缴费ID")
		return
	}

	result, err := h.paymentService.ApprovePayment(c.Request.Context(), paymentID, adminID)
	if err != nil {
		writeActivationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "会员已激活", result.Response(time.Now().UTC()))
}

// Reject 驳回凭证
// POST /api/v1/admin/payments/:id/reject
func (h *PaymentHandler) Reject(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的缴费ID")
		return
	}

	var req dto.RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.paymentService.RejectPayment(c.Request.Context(), paymentID, adminID, req.Reason); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrPaymentNotSubmitted):
			response.ConflictError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "已驳回", nil)
}

// writeActivationError 激活相关错误的统一映射
func writeActivationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrMembershipNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPaymentNotSubmitted),
		errors.Is(err, service.ErrMembershipNotPending),
		errors.Is(err, service.ErrCurrencyMismatch):
		response.ConflictError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
