package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/migratesafely/membership_server/config"
	"github.com/migratesafely/membership_server/internal/database"
	"github.com/migratesafely/membership_server/internal/pkg/logger"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Dry run mode, only count overdue memberships")
	timeout = flag.Duration("timeout", 5*time.Minute, "Maximum duration of the sweep")
)

// 一次性执行会员过期清理，适合由外部调度（如 k8s CronJob）触发
func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}

	memberships := service.NewMembershipService(
		db,
		repository.NewMembershipRepository(db),
		repository.NewProfileRepository(db),
		repository.NewAuditRepository(db),
		nil,
		nil,
		cfg.Membership,
		zlog,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	now := time.Now().UTC()
	zlog.Info("starting membership cleanup", zap.Bool("dry_run", *dryRun), zap.Time("now", now))

	if *dryRun {
		n, err := memberships.CountOverdue(ctx, now)
		if err != nil {
			zlog.Fatal("count overdue memberships failed", zap.Error(err))
		}
		zlog.Info("overdue memberships found", zap.Int64("count", n))
		return
	}

	n, err := memberships.ExpireOverdue(ctx, now)
	if err != nil {
		zlog.Fatal("expire overdue memberships failed", zap.Error(err))
	}
	zlog.Info("membership cleanup complete", zap.Int("expired", n))
}
