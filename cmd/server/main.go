package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/api"
	"github.com/migratesafely/membership_server/internal/api/handler"
	"github.com/migratesafely/membership_server/internal/database"
	"github.com/migratesafely/membership_server/internal/pkg/cron"
	"github.com/migratesafely/membership_server/internal/pkg/logger"
	"github.com/migratesafely/membership_server/internal/pkg/oss"
	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/queue"
	"github.com/migratesafely/membership_server/internal/pkg/ws"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			zlog.Fatal("failed to migrate database", zap.Error(err))
		}
	}
	zlog.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	zlog.Info("redis connected")

	// 初始化 OSS（可选）
	var storage service.ReceiptStorage
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			zlog.Warn("failed to init oss client, receipt upload disabled", zap.Error(err))
		} else {
			storage = ossClient
		}
	}

	notifier := service.NewNotifier(
		pubsub.NewPublisher(rdb, cfg.Queue.EventChannel),
		queue.NewQueue(rdb, cfg.Queue.NotificationQueue),
		zlog,
	)

	// 初始化 Repository
	profileRepo := repository.NewProfileRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configRepo := repository.NewConfigRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// 初始化 Service
	walletService := service.NewWalletService(db, walletRepo, auditRepo, zlog)
	referralService := service.NewReferralService(db, profileRepo, referralRepo, membershipRepo, configRepo, auditRepo, walletService, notifier, zlog)
	membershipService := service.NewMembershipService(db, membershipRepo, profileRepo, auditRepo, referralService, notifier, cfg.Membership, zlog)
	authService := service.NewAuthService(db, profileRepo, membershipService, referralService, cfg.JWT, zlog)
	profileService := service.NewProfileService(profileRepo)
	paymentService := service.NewPaymentService(db, paymentRepo, membershipRepo, auditRepo, membershipService, storage, notifier, cfg.Upload, zlog)
	configService := service.NewConfigService(db, configRepo, auditRepo, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket Hub 订阅成员事件
	hub := ws.NewHub(zlog)
	go func() {
		if err := hub.Relay(ctx, pubsub.NewSubscriber(rdb, cfg.Queue.EventChannel)); err != nil && ctx.Err() == nil {
			zlog.Error("event relay stopped", zap.Error(err))
		}
	}()

	scheduler := cron.NewService(membershipService, cfg.Scheduler.ExpirySchedule, zlog)
	if err := scheduler.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	handlers := api.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Profile:    handler.NewProfileHandler(profileService),
		Membership: handler.NewMembershipHandler(membershipService),
		Referral:   handler.NewReferralHandler(referralService),
		Wallet:     handler.NewWalletHandler(walletService),
		Payment:    handler.NewPaymentHandler(paymentService),
		Admin:      handler.NewAdminHandler(membershipService, referralService, configService),
		WebSocket:  handler.NewWebSocketHandler(hub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, zlog),
	}
	engine := api.NewRouter(handlers, profileService, cfg, zlog).Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}
	go func() {
		zlog.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	zlog.Info("received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
	zlog.Info("server stopped")
}
