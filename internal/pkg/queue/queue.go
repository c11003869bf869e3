package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const deadLetterSuffix = ":dead"

type Queue struct {
	client    *redis.Client
	queueName string
}

// NotificationMessage 待发送的邮件通知
type NotificationMessage struct {
	ID         string            `json:"id"`
	Event      string            `json:"event"`
	UserID     int64             `json:"user_id"`
	Data       map[string]string `json:"data,omitempty"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 将通知加入队列
func (q *Queue) Push(ctx context.Context, msg *NotificationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取通知（阻塞）
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*NotificationMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg NotificationMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Retry 重新入队，累计尝试次数达到 maxAttempts 后转入死信队列
func (q *Queue) Retry(ctx context.Context, msg *NotificationMessage, maxAttempts int) (bool, error) {
	msg.Attempts++
	if msg.Attempts >= maxAttempts {
		data, err := json.Marshal(msg)
		if err != nil {
			return false, fmt.Errorf("failed to marshal message: %w", err)
		}
		return false, q.client.LPush(ctx, q.queueName+deadLetterSuffix, data).Err()
	}
	return true, q.Push(ctx, msg)
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

// DeadLength 死信队列长度
func (q *Queue) DeadLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName+deadLetterSuffix).Result()
}
