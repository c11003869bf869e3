package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/api/handler"
	"github.com/migratesafely/membership_server/internal/api/middleware"
	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/pkg/response"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Auth       *handler.AuthHandler
	Profile    *handler.ProfileHandler
	Membership *handler.MembershipHandler
	Referral   *handler.ReferralHandler
	Wallet     *handler.WalletHandler
	Payment    *handler.PaymentHandler
	Admin      *handler.AdminHandler
	WebSocket  *handler.WebSocketHandler
}

type Router struct {
	handlers Handlers
	roles    middleware.RoleLookup
	limiter  *middleware.IPRateLimiter
	logger   *zap.Logger
	cfg      *config.Config
}

func NewRouter(handlers Handlers, roles middleware.RoleLookup, cfg *config.Config, logger *zap.Logger) *Router {
	return &Router{
		handlers: handlers,
		roles:    roles,
		limiter:  middleware.NewIPRateLimiter(cfg.RateLimit),
		logger:   logger,
		cfg:      cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := r.handlers
	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", h.WebSocket.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", r.limiter.Middleware(), h.Auth.Login)
		}

		// 公开接口 - 推荐码校验
		api.GET("/referrals/validate", r.limiter.Middleware(), h.Referral.Validate)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/profile", h.Profile.GetProfile)
			authenticated.PUT("/profile", h.Profile.UpdateProfile)

			authenticated.GET("/membership/status", h.Membership.Status)
			authenticated.POST("/membership/renew", h.Membership.Renew)

			authenticated.GET("/referrals", h.Referral.List)

			authenticated.GET("/wallet", h.Wallet.Get)
			authenticated.POST("/wallet/withdraw", h.Wallet.Withdraw)
			authenticated.GET("/wallet/transactions", h.Wallet.Transactions)

			authenticated.POST("/payments", h.Payment.Submit)
		}

		// 后台接口
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.RequireRole(r.roles, model.RoleAdmin))
		{
			admin.POST("/memberships/:id/activate", h.Admin.ActivateMembership)
			admin.POST("/memberships/:id/process-bonus", h.Admin.ProcessBonus)

			admin.GET("/payments", h.Payment.ListPending)
			admin.POST("/payments/:id/approve", h.Payment.Approve)
			admin.POST("/payments/:id/reject", h.Payment.Reject)

			admin.GET("/bonus-configs", h.Admin.ListBonusConfigs)
			admin.GET("/bonus-configs/resolve", h.Admin.ResolveBonusConfig)
			admin.POST("/bonus-configs", h.Admin.CreateBonusConfig)
		}
	}

	return engine
}
