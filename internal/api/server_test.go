package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/config"
	"github.com/duskveil/onenight/backend/internal/protocol"
	"github.com/duskveil/onenight/backend/internal/room"
)

type nopChannel struct{}

func (nopChannel) Send(protocol.ServerMessage) error { return nil }
func (nopChannel) Close()                            {}

func testRouter(t *testing.T) (*gin.Engine, *room.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := room.NewManager(room.ManagerOptions{
		MaxRooms:    10,
		RoomTimeout: time.Minute,
		ReapEvery:   time.Minute,
		Recon:       room.DefaultReconnectionOptions(),
	}, nil, zap.NewNop())
	t.Cleanup(manager.Close)

	tokens := NewTokenService(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1})
	srv := NewServer(manager, tokens, nil, nil, zap.NewNop())
	wsStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	router := srv.Router(config.ServerConfig{AllowedOrigins: []string{"*"}}, wsStub, prometheus.NewRegistry())
	return router, manager
}

func seedRoom(t *testing.T, manager *room.Manager) *room.Room {
	t.Helper()
	cfg := protocol.RoomConfig{
		MinPlayers: 3,
		MaxPlayers: 3,
		Roles: []string{
			"WEREWOLF", "SEER", "ROBBER", "TROUBLEMAKER", "VILLAGER", "VILLAGER",
		},
	}
	rm, err := manager.CreateRoom("host-id", "Host", nopChannel{}, cfg, "", nil)
	require.NoError(t, err)
	return rm
}

func TestGuestToken_IssueAndVerify(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/guest",
		strings.NewReader(`{"playerName":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		PlayerID   string `json:"playerId"`
		PlayerName string `json:"playerName"`
		Token      string `json:"token"`
		ExpiresAt  int64  `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PlayerID)
	assert.Equal(t, "Alice", resp.PlayerName)
	assert.Greater(t, resp.ExpiresAt, time.Now().Unix())

	tokens := NewTokenService(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1})
	id, name, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.PlayerID, id)
	assert.Equal(t, "Alice", name)
}

func TestGuestToken_RejectsMissingName(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/guest", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenService_RejectsTampering(t *testing.T) {
	tokens := NewTokenService(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1})
	signed, _, err := tokens.Issue("p1", "P1")
	require.NoError(t, err)

	_, _, err = tokens.Verify(signed + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService(config.JWTConfig{Secret: "other-secret", ExpiryHours: 1})
	_, _, err = other.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestListRooms_ShowsPublicLobbies(t *testing.T) {
	router, manager := testRouter(t)
	rm := seedRoom(t, manager)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, rm.Code, rooms[0].Code)
}

func TestGetRoom_AcceptsLowercaseCode(t *testing.T) {
	router, manager := testRouter(t)
	rm := seedRoom(t, manager)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/"+strings.ToLower(rm.Code), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var state protocol.RoomStatePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, rm.Code, state.Code)
}

func TestGetRoom_UnknownCodeIs404(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/ZZZZZ", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVoiceToken_UnconfiguredIs503(t *testing.T) {
	router, manager := testRouter(t)
	rm := seedRoom(t, manager)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/rooms/"+rm.Code+"/voice-token?playerId=host-id", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ReportsOK(t *testing.T) {
	router, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
