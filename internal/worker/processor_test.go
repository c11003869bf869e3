package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migratesafely/membership_server/internal/pkg/queue"
	"github.com/migratesafely/membership_server/internal/repository"
	"github.com/migratesafely/membership_server/internal/testutil"
)

type sentMail struct {
	to    string
	event string
	data  map[string]string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) SendNotification(to, event string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, event: event, data: data})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func setupQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return queue.NewQueue(client, "notification_queue")
}

func TestProcessor_Process(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	user := testutil.TestProfile(t, db, testutil.WithEmail("member@example.com"))

	sender := &fakeSender{}
	p := NewProcessor(repository.NewProfileRepository(db), sender, setupQueue(t), nil)

	err := p.Process(context.Background(), &queue.NotificationMessage{
		Event:  "referral_bonus_paid",
		UserID: user.ID,
		Data:   map[string]string{"amount": "300.00", "currency": "BDT"},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "member@example.com", sender.sent[0].to)
	assert.Equal(t, "300.00", sender.sent[0].data["amount"])
	assert.Equal(t, user.FullName, sender.sent[0].data["name"])

	// 用户不存在时丢弃
	err = p.Process(context.Background(), &queue.NotificationMessage{Event: "membership_expired", UserID: 999999})
	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestProcessor_Handle_RetryThenDeadLetter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	user := testutil.TestProfile(t, db)

	q := setupQueue(t)
	sender := &fakeSender{err: errors.New("smtp not configured")}
	p := NewProcessor(repository.NewProfileRepository(db), sender, q, nil)
	ctx := context.Background()

	msg := &queue.NotificationMessage{Event: "membership_activated", UserID: user.ID}
	for i := 0; i < defaultMaxAttempts; i++ {
		p.Handle(ctx, msg)
	}
	assert.Equal(t, defaultMaxAttempts, msg.Attempts)

	dead, err := q.DeadLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	pending, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(defaultMaxAttempts-1), pending)
}

func TestProcessor_Run(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	user := testutil.TestProfile(t, db)

	q := setupQueue(t)
	sender := &fakeSender{}
	p := NewProcessor(repository.NewProfileRepository(db), sender, q, nil)
	p.popTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, &queue.NotificationMessage{Event: "membership_activated", UserID: user.ID}))
	}

	done := make(chan struct{})
	go func() {
		p.Run(ctx, 2)
		close(done)
	}()

	require.Eventually(t, func() bool { return sender.count() == 3 }, 2*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("workers did not stop")
	}
}
