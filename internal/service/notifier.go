package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/queue"
)

// EventPublisher 实时事件发布（Redis pub/sub）
type EventPublisher interface {
	Publish(ctx context.Context, evt *pubsub.MemberEvent) error
}

// NotificationQueue 邮件通知队列（Redis list）
type NotificationQueue interface {
	Push(ctx context.Context, msg *queue.NotificationMessage) error
}

// Notifier 在事务提交后发送通知，失败只记录日志
type Notifier struct {
	publisher EventPublisher
	queue     NotificationQueue
	logger    *zap.Logger
}

func NewNotifier(publisher EventPublisher, q NotificationQueue, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, queue: q, logger: logger}
}

// Notify 推送实时事件并投递邮件任务。nil Notifier 不做任何事
func (n *Notifier) Notify(ctx context.Context, evt *pubsub.MemberEvent, data map[string]string) {
	if n == nil {
		return
	}
	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, evt); err != nil {
			n.logger.Warn("publish member event failed",
				zap.String("type", evt.Type),
				zap.Int64("user_id", evt.UserID),
				zap.Error(err),
			)
		}
	}
	if n.queue != nil {
		msg := &queue.NotificationMessage{Event: evt.Type, UserID: evt.UserID, Data: data}
		if err := n.queue.Push(ctx, msg); err != nil {
			n.logger.Warn("enqueue notification failed",
				zap.String("type", evt.Type),
				zap.Int64("user_id", evt.UserID),
				zap.Error(err),
			)
		}
	}
}
