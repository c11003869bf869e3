package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/pkg/response"
	"github.com/migratesafely/membership_server/internal/service"
)

type MembershipHandler struct {
	membershipService *service.MembershipService
}

func NewMembershipHandler(membershipService *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
	}
}

// Status 当前会员状态
// GET /api/v1/membership/status
func (h *MembershipHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.membershipService.CheckStatus(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrMembershipNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}

// Renew 申请续费
// POST /api/v1/membership/renew
func (h *MembershipHandler) Renew(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.membershipService.RequestRenewal(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMembershipNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrPendingMembershipExists):
			response.DuplicateError(c, err.Error())
		case errors.Is(err, service.ErrRenewalNotAllowed):
			response.ConflictError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "续费申请已创建", status)
}
