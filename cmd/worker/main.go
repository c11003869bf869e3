package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/database"
	"github.com/migratesafely/membership_server/internal/pkg/email"
	"github.com/migratesafely/membership_server/internal/pkg/logger"
	"github.com/migratesafely/membership_server/internal/pkg/queue"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/worker"
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

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}

	processor := worker.NewProcessor(
		repository.NewProfileRepository(db),
		email.NewService(&cfg.Email),
		queue.NewQueue(rdb, cfg.Queue.NotificationQueue),
		zlog,
	)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zlog.Info("received shutdown signal")
		cancel()
	}()

	zlog.Info("worker started", zap.Int("max_workers", cfg.Queue.MaxWorkers))
	processor.Run(ctx, cfg.Queue.MaxWorkers)
	zlog.Info("worker shutdown complete")
}
