package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/model/dto"
	"github.com/migratesafely/membership_server/internal/pkg/response"
	"github.com/migratesafely/membership_server/internal/service"
)

type AdminHandler struct {
	membershipService *service.MembershipService
	referralService   *service.ReferralService
	configService     *service.ConfigService
}

func NewAdminHandler(
	membershipService *service.MembershipService,
	referralService *service.ReferralService,
	configService *service.ConfigService,
) *AdminHandler {
	return &AdminHandler{
		membershipService: membershipService,
		referralService:   referralService,
		configService:     configService,
	}
}

// ActivateMembership 直接确认付款并激活
// POST /api/v1/admin/memberships/:id/activate
func (h *AdminHandler) ActivateMembership(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的会员ID")
		return
	}

	result, err := h.membershipService.ActivateMembership(c.Request.Context(), membershipID, adminID)
	if err != nil {
		writeActivationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "会员已激活", result.Response(time.Now().UTC()))
}

// ProcessBonus 补发推荐奖励，已发放时返回 paid=false
// POST /api/v1/admin/memberships/:id/process-bonus
func (h *AdminHandler) ProcessBonus(c *gin.Context) {
	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的会员ID")
		return
	}

	result, err := h.referralService.ProcessReferralBonus(c.Request.Context(), membershipID)
	if err != nil {
		writeActivationError(c, err)
		return
	}

	response.Success(c, result)
}

// ListBonusConfigs 推荐奖励配置列表
// GET /api/v1/admin/bonus-configs
func (h *AdminHandler) ListBonusConfigs(c *gin.Context) {
	configs, err := h.configService.ListConfigs(c.Request.Context())
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, configs)
}

// CreateBonusConfig 新增推荐奖励配置
// POST /api/v1/admin/bonus-configs
func (h *AdminHandler) CreateBonusConfig(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateBonusConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	cfg, err := h.configService.CreateConfig(c.Request.Context(), adminID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidBonusConfig) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "配置已创建", cfg)
}

// ResolveBonusConfig 查询某国家当前生效的奖励
// GET /api/v1/admin/bonus-configs/resolve?country=BD
func (h *AdminHandler) ResolveBonusConfig(c *gin.Context) {
	cfg, err := h.configService.ResolveBonusConfig(c.Request.Context(), c.Query("country"), time.Now().UTC())
	if err != nil {
		if errors.Is(err, service.ErrBonusConfigNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"config_id":    cfg.ConfigID,
		"country_code": cfg.CountryCode,
		"amount":       cfg.Amount.StringFixed(2),
		"currency":     cfg.Currency,
	})
}
