package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/pkg/response"
	"github.com/migratesafely/membership_server/internal/service"
)

type ReferralHandler struct {
	referralService *service.ReferralService
}

func NewReferralHandler(referralService *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// Validate 校验推荐码（公开接口）
// GET /api/v1/referrals/validate?code=xxx
func (h *ReferralHandler) Validate(c *gin.Context) {
	result, err := h.referralService.ValidateReferralCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, result)
}

// List 我推荐的用户及汇总
// GET /api/v1/referrals
func (h *ReferralHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	summary, err := h.referralService.ListForReferrer(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, summary)
}
