package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/migratesafely/membership_server/internal/model"
	"github.com/migratesafely/membership_server/internal/pkg/queue"
)

const (
	defaultMaxAttempts = 3
	popTimeout         = 5 * time.Second
)

// ProfileLookup 根据用户 ID 查询收件人
type ProfileLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Profile, error)
}

// EmailSender 发送事件通知邮件
type EmailSender interface {
	SendNotification(to, event string, data map[string]string) error
}

// NotificationQueue 通知队列
type NotificationQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.NotificationMessage, error)
	Retry(ctx context.Context, msg *queue.NotificationMessage, maxAttempts int) (bool, error)
}

// Processor 通知处理器
type Processor struct {
	profiles    ProfileLookup
	sender      EmailSender
	queue       NotificationQueue
	maxAttempts int
	popTimeout  time.Duration
	logger      *zap.Logger
}

// NewProcessor 创建通知处理器
func NewProcessor(profiles ProfileLookup, sender EmailSender, q NotificationQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		profiles:    profiles,
		sender:      sender,
		queue:       q,
		maxAttempts: defaultMaxAttempts,
		popTimeout:  popTimeout,
		logger:      logger,
	}
}

// Process 发送一条通知。用户已不存在时直接丢弃
func (p *Processor) Process(ctx context.Context, msg *queue.NotificationMessage) error {
	profile, err := p.profiles.GetByID(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Warn("notification recipient missing",
				zap.String("message_id", msg.ID),
				zap.Int64("user_id", msg.UserID),
			)
			return nil
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["name"] = profile.FullName

	if err := p.sender.SendNotification(profile.Email, msg.Event, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Event, err)
	}

	p.logger.Info("notification sent",
		zap.String("message_id", msg.ID),
		zap.String("event", msg.Event),
		zap.Int64("user_id", msg.UserID),
	)
	return nil
}

// Handle 处理一条消息，失败时重新入队，超过次数进入死信队列
func (p *Processor) Handle(ctx context.Context, msg *queue.NotificationMessage) {
	err := p.Process(ctx, msg)
	if err == nil {
		return
	}

	requeued, retryErr := p.queue.Retry(ctx, msg, p.maxAttempts)
	if retryErr != nil {
		p.logger.Error("requeue notification failed",
			zap.String("message_id", msg.ID),
			zap.Error(retryErr),
		)
		return
	}
	p.logger.Warn("notification failed",
		zap.String("message_id", msg.ID),
		zap.String("event", msg.Event),
		zap.Int("attempts", msg.Attempts),
		zap.Bool("requeued", requeued),
		zap.Error(err),
	)
}

// Run 启动 workers 个消费协程，ctx 取消后等待全部退出
func (p *Processor) Run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					p.logger.Info("worker shutting down", zap.Int("worker_id", workerID))
					return
				}

				msg, err := p.queue.Pop(ctx, p.popTimeout)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					p.logger.Warn("pop notification failed", zap.Int("worker_id", workerID), zap.Error(err))
					continue
				}
				if msg == nil {
					continue // 超时，继续等待
				}

				p.Handle(ctx, msg)
			}
		}(i)
	}
	wg.Wait()
}
