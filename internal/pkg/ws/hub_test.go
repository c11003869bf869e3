package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// startServer 每个连接注册为 nextUserID() 返回的用户
func startServer(t *testing.T, hub *Hub, nextUserID func() int64) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{UserID: nextUserID(), Conn: conn}
		hub.Register(client)
		go func() {
			defer hub.Unregister(client)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_Empty(t *testing.T) {
	hub := NewHub(nil)

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, hub.IsOnline(1))
	assert.NoError(t, hub.SendToUser(1, &Message{Type: "noop"}))
}

func TestHub_SendToUser_AllConnections(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, func() int64 { return 200 })

	conn1 := dial(t, url)
	conn2 := dial(t, url)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.True(t, hub.IsOnline(200))

	require.NoError(t, hub.SendToUser(200, &Message{Type: "notification", Data: map[string]string{"content": "hello"}}))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, received, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(received), "hello")
	}
}

func TestHub_Unregister_OnClose(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, func() int64 { return 300 })

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.IsOnline(300) }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !hub.IsOnline(300) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_Relay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(nil)
	url := startServer(t, hub, func() int64 { return 42 })
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.IsOnline(42) }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = hub.Relay(ctx, pubsub.NewSubscriber(client, "member_events"))
	}()
	require.Eventually(t, func() bool {
		res, err := client.PubSubNumSub(ctx, "member_events").Result()
		return err == nil && res["member_events"] > 0
	}, 2*time.Second, 10*time.Millisecond)

	publisher := pubsub.NewPublisher(client, "member_events")
	require.NoError(t, publisher.Publish(ctx, &pubsub.MemberEvent{
		Type:         pubsub.EventMembershipActivated,
		UserID:       42,
		MembershipID: 5,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string             `json:"type"`
		Data pubsub.MemberEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, pubsub.EventMembershipActivated, msg.Type)
	assert.Equal(t, int64(5), msg.Data.MembershipID)
}
