package match

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loop-dev/loop-battle/internal/auth/jwt"
	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/pkg/http/ws"
)

func TestWSHandler_ParticipantReceivesPushes(t *testing.T) {
	h := newHarness(t, ServiceOptions{})
	roomID, host, _ := h.startMatch(t, battle.ModeMiniQuiz)

	tokens := jwt.NewManager(jwt.TokenConfig{AccessSecret: []byte("ws-secret"), AccessTTL: time.Hour})
	hub := ws.NewHub(zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/ws/rooms/{roomID}", NewWSHandler(h.svc, hub, tokens, &websocket.Upgrader{}, zerolog.Nop()).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID.String()

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	outsider, err := tokens.GenerateAccessToken(jwt.User{ID: testPlayer("x").ID, Nickname: "x"})
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(base+"?token="+outsider, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	token, err := tokens.GenerateAccessToken(jwt.User{ID: host.ID, Nickname: host.Nickname})
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeRoomUpdate, msg.Type)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "r1"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypePong, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)

	require.NoError(t, hub.BroadcastToRoom(roomID, ws.Message{Type: ws.TypeMatchTimeout}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeMatchTimeout, msg.Type)
}
