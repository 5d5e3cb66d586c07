package handlers

import (
	"net"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.app.Listener(ln) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/chat-1", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(map[string]string{
		"query":       "I was charged twice this month",
		"customer_id": "cust-ws",
	}))

	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ai_response", reply["type"])
	assert.Equal(t, "billing", reply["agent_type"])
	assert.Equal(t, 0.9, reply["confidence"])
	assert.NotEmpty(t, reply["response"])
	assert.NotEmpty(t, reply["timestamp"])

	require.NoError(t, conn.WriteMessage(fws.TextMessage, []byte("not json")))
	var failure map[string]interface{}
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "error", failure["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"query": "help", "priority": "whenever"}))
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "error", failure["type"])
	assert.Contains(t, failure["error"], "invalid priority")

	assert.Equal(t, 1, s.hub.Count())

	delivered, err := s.hub.Send("chat-1", map[string]string{"type": "notice"})
	require.NoError(t, err)
	assert.True(t, delivered)
	var notice map[string]interface{}
	require.NoError(t, conn.ReadJSON(&notice))
	assert.Equal(t, "notice", notice["type"])

	delivered, err = s.hub.Send("nobody", map[string]string{"type": "notice"})
	require.NoError(t, err)
	assert.False(t, delivered)

	sess, ok := s.analytics.SessionSnapshot("chat-1")
	require.True(t, ok)
	assert.Equal(t, "cust-ws", sess.CustomerID)
	assert.Equal(t, 1, sess.TotalQueries)

	require.NoError(t, conn.WriteMessage(fws.CloseMessage, fws.FormatCloseMessage(fws.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return s.hub.Count() == 0 }, 5*time.Second, 20*time.Millisecond)
}
