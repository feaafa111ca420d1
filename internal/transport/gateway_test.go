package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/config"
	"github.com/duskveil/onenight/backend/internal/metrics"
	"github.com/duskveil/onenight/backend/internal/protocol"
	"github.com/duskveil/onenight/backend/internal/room"
)

type wireMessage struct {
	Type    protocol.ServerMessageType `json:"type"`
	Payload json.RawMessage            `json:"payload"`
}

type testServer struct {
	gateway *Gateway
	manager *room.Manager
	httpSrv *httptest.Server
}

func newTestServer(t *testing.T, perSec int) *testServer {
	t.Helper()
	manager := room.NewManager(room.ManagerOptions{
		MaxRooms:    10,
		RoomTimeout: time.Minute,
		ReapEvery:   time.Minute,
		Recon:       room.DefaultReconnectionOptions(),
	}, nil, zap.NewNop())

	cfg := config.GatewayConfig{
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		MaxMessageBytes: 16 * 1024,
		MessagesPerSec:  perSec,
		SendQueueSize:   64,
	}
	g := NewGateway(cfg, manager, nil, []string{"*"}, nil, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWS))

	ts := &testServer{gateway: g, manager: manager, httpSrv: srv}
	t.Cleanup(func() {
		srv.Close()
		manager.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType protocol.ClientMessageType, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	require.NoError(t, conn.WriteJSON(protocol.ClientMessage{Type: msgType, Payload: raw}))
}

// awaitType reads messages until one of the wanted type arrives, skipping
// broadcasts the test does not care about.
func awaitType(t *testing.T, conn *websocket.Conn, want protocol.ServerMessageType) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		if msg.Type == want {
			return msg
		}
	}
}

func authenticate(t *testing.T, conn *websocket.Conn, id, name string) protocol.AuthenticatedPayload {
	t.Helper()
	send(t, conn, protocol.ClientAuthenticate, protocol.AuthenticatePayload{PlayerID: id, PlayerName: name})
	msg := awaitType(t, conn, protocol.ServerAuthenticated)
	var p protocol.AuthenticatedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	return p
}

func lobbyConfig() protocol.RoomConfig {
	return protocol.RoomConfig{
		MinPlayers: 3,
		MaxPlayers: 3,
		Roles: []string{
			"WEREWOLF", "SEER", "ROBBER", "TROUBLEMAKER", "VILLAGER", "VILLAGER",
		},
		TimeoutProfile: "casual",
	}
}

func TestGateway_RequiresAuthenticationFirst(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)

	send(t, conn, protocol.ClientCreateRoom, protocol.CreateRoomPayload{Config: lobbyConfig()})
	msg := awaitType(t, conn, protocol.ServerError)

	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, protocol.CodeAuthRequired, p.Code)
}

func TestGateway_AuthenticateAssignsIdentity(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)

	p := authenticate(t, conn, "", "")
	assert.NotEmpty(t, p.PlayerID)
	assert.True(t, strings.HasPrefix(p.PlayerName, "Guest-"))

	// A supplied identity is kept as-is.
	conn2 := ts.dial(t)
	p2 := authenticate(t, conn2, "alice-id", "Alice")
	assert.Equal(t, "alice-id", p2.PlayerID)
	assert.Equal(t, "Alice", p2.PlayerName)
}

// Client-supplied ids can be arbitrarily short; deriving a guest name from
// one must not fault the connection.
func TestGateway_AuthenticateShortIDGetsGuestName(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)

	p := authenticate(t, conn, "ab", "")
	assert.Equal(t, "ab", p.PlayerID)
	assert.Equal(t, "Guest-ab", p.PlayerName)

	// The session is still alive afterwards.
	send(t, conn, protocol.ClientPing, nil)
	awaitType(t, conn, protocol.ServerPong)
}

func TestGateway_CreateAndJoinRoom(t *testing.T) {
	ts := newTestServer(t, 100)

	host := ts.dial(t)
	authenticate(t, host, "host-id", "Host")
	send(t, host, protocol.ClientCreateRoom, protocol.CreateRoomPayload{Config: lobbyConfig()})

	created := awaitType(t, host, protocol.ServerRoomCreated)
	var state protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(created.Payload, &state))
	require.Len(t, state.Code, 5)
	assert.Equal(t, "host-id", state.HostID)

	guest := ts.dial(t)
	authenticate(t, guest, "guest-id", "Guest")
	send(t, guest, protocol.ClientJoinRoom, protocol.JoinRoomPayload{RoomCode: state.Code})

	joined := awaitType(t, guest, protocol.ServerRoomJoined)
	var joinedState protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(joined.Payload, &joinedState))
	assert.Len(t, joinedState.Members, 2)

	// The host sees the join as a room update.
	update := awaitType(t, host, protocol.ServerRoomUpdate)
	require.NoError(t, json.Unmarshal(update.Payload, &joinedState))
	assert.Len(t, joinedState.Members, 2)
}

func TestGateway_JoinRejectsUnknownCode(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)
	authenticate(t, conn, "p1", "P1")

	send(t, conn, protocol.ClientJoinRoom, protocol.JoinRoomPayload{RoomCode: "ZZZZZ"})
	msg := awaitType(t, conn, protocol.ServerError)

	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, protocol.CodeRoomNotFound, p.Code)
}

func TestGateway_PingPong(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)

	send(t, conn, protocol.ClientPing, nil)
	awaitType(t, conn, protocol.ServerPong)
}

func TestGateway_RateLimitRejectsFlood(t *testing.T) {
	ts := newTestServer(t, 2)
	conn := ts.dial(t)
	authenticate(t, conn, "spammer", "Spammer")

	for i := 0; i < 10; i++ {
		send(t, conn, protocol.ClientPing, nil)
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != protocol.ServerError {
			continue
		}
		var p protocol.ErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, protocol.CodeRateLimited, p.Code)
		return
	}
}

func TestGateway_MalformedMessageReportsError(t *testing.T) {
	ts := newTestServer(t, 100)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := awaitType(t, conn, protocol.ServerError)

	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, protocol.CodeInternalError, p.Code)
}

// Session teardown must not leave pumps behind. The baseline snapshot covers
// the limiter store's janitor and the test server itself.
func TestGateway_ConnectionLifecycleLeaksNothing(t *testing.T) {
	ts := newTestServer(t, 100)
	opt := goleak.IgnoreCurrent()

	conn := ts.dial(t)
	authenticate(t, conn, "leak-check", "Leak")
	conn.Close()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ts.gateway.metrics.ActiveConnections) == 0
	}, 2*time.Second, 10*time.Millisecond)
	goleak.VerifyNone(t, opt)
}

func TestGateway_DisconnectRemovesLobbyMember(t *testing.T) {
	ts := newTestServer(t, 100)

	host := ts.dial(t)
	authenticate(t, host, "host-id", "Host")
	send(t, host, protocol.ClientCreateRoom, protocol.CreateRoomPayload{Config: lobbyConfig()})
	created := awaitType(t, host, protocol.ServerRoomCreated)
	var state protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(created.Payload, &state))

	guest := ts.dial(t)
	authenticate(t, guest, "guest-id", "Guest")
	send(t, guest, protocol.ClientJoinRoom, protocol.JoinRoomPayload{RoomCode: state.Code})
	awaitType(t, guest, protocol.ServerRoomJoined)
	awaitType(t, host, protocol.ServerRoomUpdate)

	guest.Close()

	update := awaitType(t, host, protocol.ServerRoomUpdate)
	require.NoError(t, json.Unmarshal(update.Payload, &state))
	assert.Len(t, state.Members, 1)
}
