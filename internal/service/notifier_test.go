package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
)

func TestNotifier_Notify(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	q := &fakeQueue{}
	n := NewNotifier(pub, q, nil)

	n.Notify(context.Background(), &pubsub.MemberEvent{Type: pubsub.EventMembershipExpired, UserID: 7},
		map[string]string{"end_date": "2025-01-01"})

	// 发布失败不影响邮件投递
	assert.Equal(t, []string{pubsub.EventMembershipExpired}, pub.types())
	assert.Len(t, q.messages, 1)
	assert.Equal(t, int64(7), q.messages[0].UserID)
	assert.Equal(t, "2025-01-01", q.messages[0].Data["end_date"])
}

func TestNotifier_NilSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), &pubsub.MemberEvent{Type: pubsub.EventMembershipActivated}, nil)
	})

	empty := NewNotifier(nil, nil, nil)
	assert.NotPanics(t, func() {
		empty.Notify(context.Background(), &pubsub.MemberEvent{Type: pubsub.EventMembershipActivated}, nil)
	})
}
