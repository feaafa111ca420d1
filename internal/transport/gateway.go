package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duskveil/onenight/backend/internal/config"
	"github.com/duskveil/onenight/backend/internal/game"
	"github.com/duskveil/onenight/backend/internal/metrics"
	"github.com/duskveil/onenight/backend/internal/protocol"
	"github.com/duskveil/onenight/backend/internal/room"
)

// TokenVerifier checks a guest token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (playerID, playerName string, err error)
}

// Gateway upgrades websocket connections and routes client messages to the
// room layer. Every session must authenticate before anything else.
type Gateway struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     config.GatewayConfig
	manager *room.Manager
	tokens  TokenVerifier
	limiter *limiter.Limiter

	upgrader websocket.Upgrader
}

// NewGateway builds the session gateway. A non-nil redis client backs the
// rate limiter so limits hold across instances; otherwise an in-memory store
// is used.
func NewGateway(cfg config.GatewayConfig, manager *room.Manager, tokens TokenVerifier, allowedOrigins []string, redisClient *redis.Client, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "onenight:limiter:"})
		if err != nil {
			logger.Warn("failed to create redis limiter store, falling back to memory", zap.Error(err))
			store = memory.NewStore()
		} else {
			store = s
		}
	} else {
		store = memory.NewStore()
	}

	rate := limiter.Rate{Period: time.Second, Limit: int64(cfg.MessagesPerSec)}
	g := &Gateway{
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		manager: manager,
		tokens:  tokens,
		limiter: limiter.New(store, rate),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// HandleWS upgrades the request and starts the session pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newClient(g, conn)
	g.metrics.ActiveConnections.Inc()
	go c.writePump()
	go c.readPump()
}

func (g *Gateway) handleClose(c *Client) {
	g.metrics.ActiveConnections.Dec()
	id, _, ok := c.identity()
	if !ok {
		return
	}
	if rm := g.manager.FindPlayerRoom(id); rm != nil {
		rm.HandleDisconnect(id)
	}
}

func (g *Gateway) handleMessage(c *Client, msg protocol.ClientMessage) {
	id, _, authed := c.identity()

	limitKey := id
	if limitKey == "" {
		limitKey = c.conn.RemoteAddr().String()
	}
	lctx, err := g.limiter.Get(context.Background(), limitKey)
	if err == nil && lctx.Reached {
		g.metrics.MessagesRejected.Inc()
		_ = c.Send(protocol.NewError(protocol.CodeRateLimited, "too many messages"))
		return
	}
	g.metrics.MessagesIn.Inc()

	if msg.Type == protocol.ClientPing {
		_ = c.Send(protocol.NewServerMessage(protocol.ServerPong, nil))
		return
	}
	if msg.Type == protocol.ClientAuthenticate {
		g.handleAuthenticate(c, msg)
		return
	}
	if !authed {
		_ = c.Send(protocol.NewError(protocol.CodeAuthRequired, "authenticate first"))
		return
	}

	switch msg.Type {
	case protocol.ClientCreateRoom:
		g.handleCreateRoom(c, msg)
	case protocol.ClientJoinRoom:
		g.handleJoinRoom(c, msg)
	case protocol.ClientLeaveRoom:
		g.inRoom(c, func(rm *room.Room) error {
			return rm.RemovePlayer(id, id)
		})
	case protocol.ClientSetReady:
		var p protocol.SetReadyPayload
		if !g.decode(c, msg, &p) {
			return
		}
		g.inRoom(c, func(rm *room.Room) error {
			return rm.SetReady(id, p.Ready)
		})
	case protocol.ClientAddAI:
		g.inRoom(c, func(rm *room.Room) error {
			return rm.AddAI(id)
		})
	case protocol.ClientRemovePlayer:
		var p protocol.RemovePlayerPayload
		if !g.decode(c, msg, &p) {
			return
		}
		g.inRoom(c, func(rm *room.Room) error {
			return rm.RemovePlayer(id, p.PlayerID)
		})
	case protocol.ClientUpdateConfig:
		var p protocol.RoomConfigPatch
		if !g.decode(c, msg, &p) {
			return
		}
		g.inRoom(c, func(rm *room.Room) error {
			return rm.UpdateConfig(id, p)
		})
	case protocol.ClientStartGame:
		g.inRoom(c, func(rm *room.Room) error {
			return rm.Start(id)
		})
	case protocol.ClientSubmitStatement:
		var p protocol.SubmitStatementPayload
		if !g.decode(c, msg, &p) {
			return
		}
		ts := p.Timestamp
		if ts.IsZero() {
			ts = msg.Timestamp
		}
		g.inRoom(c, func(rm *room.Room) error {
			return rm.SubmitStatement(id, p.Statement, ts)
		})
	case protocol.ClientReadyToVote:
		g.inRoom(c, func(rm *room.Room) error {
			return rm.ReadyToVote(id)
		})
	case protocol.ClientActionResponse:
		var p protocol.ActionResponsePayload
		if !g.decode(c, msg, &p) {
			return
		}
		g.inRoom(c, func(rm *room.Room) error {
			return rm.HandleActionResponse(id, p.RequestID, p.Response)
		})
	default:
		g.metrics.MessagesRejected.Inc()
		_ = c.Send(protocol.NewError(protocol.CodeInternalError, "unknown message type"))
	}
}

func (g *Gateway) handleAuthenticate(c *Client, msg protocol.ClientMessage) {
	var p protocol.AuthenticatePayload
	if !g.decode(c, msg, &p) {
		return
	}

	id, name := p.PlayerID, p.PlayerName
	if p.Token != "" && g.tokens != nil {
		tokenID, tokenName, err := g.tokens.Verify(p.Token)
		if err != nil {
			_ = c.Send(protocol.NewError(protocol.CodeAuthRequired, "invalid token"))
			return
		}
		id, name = tokenID, tokenName
	}
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		// The id is client-supplied and can be arbitrarily short.
		suffix := id
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		name = "Guest-" + suffix
	}
	c.setIdentity(id, name)
	_ = c.Send(protocol.NewServerMessage(protocol.ServerAuthenticated, protocol.AuthenticatedPayload{
		PlayerID:   id,
		PlayerName: name,
	}))

	// A returning player whose game is still running is reattached
	// immediately, before any explicit join.
	if rm := g.manager.FindPlayerRoom(id); rm != nil && rm.Status() == room.StatusPlaying {
		if err := rm.HandleReconnect(id, c); err != nil {
			g.logger.Warn("reconnect on authenticate failed",
				zap.String("player", id), zap.Error(err))
		}
	}
}

func (g *Gateway) handleCreateRoom(c *Client, msg protocol.ClientMessage) {
	var p protocol.CreateRoomPayload
	if !g.decode(c, msg, &p) {
		return
	}
	id, name, _ := c.identity()
	rm, err := g.manager.CreateRoom(id, name, c, p.Config, p.Password, p.Debug)
	if err != nil {
		g.sendError(c, err)
		return
	}
	_ = c.Send(protocol.NewServerMessage(protocol.ServerRoomCreated, rm.Snapshot()))
}

func (g *Gateway) handleJoinRoom(c *Client, msg protocol.ClientMessage) {
	var p protocol.JoinRoomPayload
	if !g.decode(c, msg, &p) {
		return
	}
	id, name, _ := c.identity()
	if p.PlayerName != "" {
		name = p.PlayerName
	}

	rm, err := g.manager.GetRoom(strings.ToUpper(strings.TrimSpace(p.RoomCode)))
	if err != nil {
		g.sendError(c, err)
		return
	}
	if hash := rm.PasswordHash(); len(hash) > 0 && !rm.HasMember(id) {
		if bcrypt.CompareHashAndPassword(hash, []byte(p.Password)) != nil {
			g.sendError(c, room.ErrWrongPassword)
			return
		}
	}
	if rm.HasMember(id) && rm.Status() == room.StatusPlaying {
		if err := rm.HandleReconnect(id, c); err != nil {
			g.sendError(c, err)
			return
		}
	} else if err := rm.AddPlayer(id, name, c, false); err != nil {
		g.sendError(c, err)
		return
	}
	_ = c.Send(protocol.NewServerMessage(protocol.ServerRoomJoined, rm.Snapshot()))
}

// inRoom resolves the caller's room and reports sentinel errors back on the
// session channel.
func (g *Gateway) inRoom(c *Client, fn func(*room.Room) error) {
	id, _, _ := c.identity()
	rm := g.manager.FindPlayerRoom(id)
	if rm == nil {
		_ = c.Send(protocol.NewError(protocol.CodeNotInRoom, "not in a room"))
		return
	}
	if err := fn(rm); err != nil {
		g.sendError(c, err)
	}
}

func (g *Gateway) decode(c *Client, msg protocol.ClientMessage, v any) bool {
	if err := msg.DecodePayload(v); err != nil {
		g.metrics.MessagesRejected.Inc()
		_ = c.Send(protocol.NewError(protocol.CodeInternalError, "malformed payload"))
		return false
	}
	return true
}

func (g *Gateway) sendError(c *Client, err error) {
	_ = c.Send(protocol.NewError(errorCode(err), err.Error()))
}

func errorCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrTooManyRooms):
		return protocol.CodeRoomFull
	case errors.Is(err, room.ErrNotHost):
		return protocol.CodeNotHost
	case errors.Is(err, room.ErrWrongPassword):
		return protocol.CodeInvalidPassword
	case errors.Is(err, room.ErrNotMember), errors.Is(err, game.ErrUnknownPlayer):
		return protocol.CodeNotInRoom
	case errors.Is(err, room.ErrWrongStatus),
		errors.Is(err, room.ErrNotEnoughPlayers),
		errors.Is(err, room.ErrPlayersNotReady),
		errors.Is(err, room.ErrAlreadyInRoom),
		errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrEliminated):
		return protocol.CodeInvalidPhase
	case errors.Is(err, room.ErrInvalidAnswer),
		errors.Is(err, room.ErrUnknownRequest):
		return protocol.CodeInvalidTarget
	default:
		return protocol.CodeInternalError
	}
}
