package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "member_events"

// 会员事件类型
const (
	EventMembershipActivated = "membership_activated"
	EventReferralBonusPaid   = "referral_bonus_paid"
	EventMembershipExpired   = "membership_expired"
	EventPaymentRejected     = "payment_rejected"
)

// MemberEvent 推送给在线用户的状态变更
type MemberEvent struct {
	Type         string    `json:"type"`
	UserID       int64     `json:"user_id"`
	MembershipID int64     `json:"membership_id,omitempty"`
	ReferralID   int64     `json:"referral_id,omitempty"`
	PaymentID    int64     `json:"payment_id,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Message      string    `json:"message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// 事件对应的默认提示
var EventMessages = map[string]string{
	EventMembershipActivated: "会员已激活",
	EventReferralBonusPaid:   "推荐奖励已到账",
	EventMembershipExpired:   "会员已过期",
	EventPaymentRejected:     "付款凭证未通过审核",
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher 创建发布者，channel 为空时使用默认频道
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish 发布会员事件
func (p *Publisher) Publish(ctx context.Context, evt *MemberEvent) error {
	if evt.Message == "" {
		evt.Message = EventMessages[evt.Type]
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal member event: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞订阅，直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*MemberEvent)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var evt MemberEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
