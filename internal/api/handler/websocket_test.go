package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migratesafely/membership_server/internal/pkg/pubsub"
	"github.com/migratesafely/membership_server/internal/pkg/ws"
)

func wsServer(t *testing.T, origins []string) (*ws.Hub, *httptest.Server) {
	t.Helper()
	hub := ws.NewHub(nil)
	h := NewWebSocketHandler(hub, testJWTSecret, origins, nil)

	router := gin.New()
	router.GET("/ws", h.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, server
}

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
}

func TestWebSocketHandler_DeliversEvents(t *testing.T) {
	hub, server := wsServer(t, nil)

	token := strings.TrimPrefix(bearer(t, 42, "member"), "Bearer ")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(42) }, time.Second, 10*time.Millisecond)

	hub.Dispatch(&pubsub.MemberEvent{Type: pubsub.EventReferralBonusPaid, UserID: 42, Amount: "300.00", Currency: "BDT"})

	var msg ws.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, pubsub.EventReferralBonusPaid, msg.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.IsOnline(42) }, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsBadToken(t *testing.T) {
	_, server := wsServer(t, nil)

	for _, token := range []string{"", "not-a-jwt"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	_, server := wsServer(t, []string{"https://migratesafely.com"})
	token := strings.TrimPrefix(bearer(t, 7, "member"), "Bearer ")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, token), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://migratesafely.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, token), header)
	require.NoError(t, err)
	conn.Close()
}
