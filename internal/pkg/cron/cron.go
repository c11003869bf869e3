package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 2 * time.Minute

// ExpirySweeper 将已过期的有效会员标记为 expired
type ExpirySweeper interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type Service struct {
	cron     *cron.Cron
	sweeper  ExpirySweeper
	schedule string
	logger   *zap.Logger
}

func NewService(sweeper ExpirySweeper, schedule string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &Service{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// Start 注册并启动定时任务
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunExpirySweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cron service started", zap.String("expiry_schedule", s.schedule))
	return nil
}

// Stop 停止调度并等待正在运行的任务结束
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron service stopped")
}

// RunExpirySweep 执行一次过期扫描
func (s *Service) RunExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expiry sweep completed",
			zap.Int("expired", n),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
