// Package api serves the HTTP surface around the websocket gateway: guest
// auth, lobby discovery, voice tokens, health and metrics.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/config"
	"github.com/duskveil/onenight/backend/internal/room"
	"github.com/duskveil/onenight/backend/internal/voice"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	logger  *zap.Logger
	manager *room.Manager
	tokens  *TokenService
	voice   *voice.Service // nil when voice is disabled
	redis   *redis.Client  // nil when redis is disabled
}

func NewServer(manager *room.Manager, tokens *TokenService, voiceSvc *voice.Service, redisClient *redis.Client, logger *zap.Logger) *Server {
	return &Server{
		logger:  logger,
		manager: manager,
		tokens:  tokens,
		voice:   voiceSvc,
		redis:   redisClient,
	}
}

// Router builds the gin engine. The websocket gateway is mounted as-is so
// this package stays unaware of the session internals.
func (s *Server) Router(cfg config.ServerConfig, wsHandler http.Handler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/ws", gin.WrapH(wsHandler))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/guest", s.GuestToken)
		v1.GET("/rooms", s.ListRooms)
		v1.GET("/rooms/:code", s.GetRoom)
		v1.GET("/rooms/:code/voice-token", s.VoiceToken)
	}
	return router
}

// Health reports liveness, plus redis reachability when configured.
func (s *Server) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"rooms":  s.manager.RoomCount(),
		"time":   time.Now().UTC(),
	}
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()).Err(); err != nil {
			resp["status"] = "degraded"
			resp["redis"] = "unreachable"
			c.JSON(http.StatusOK, resp)
			return
		}
		resp["redis"] = "ok"
	}
	c.JSON(http.StatusOK, resp)
}

type guestTokenRequest struct {
	PlayerName string `json:"playerName" binding:"required,min=1,max=32"`
}

// GuestToken mints a fresh identity and a signed token for it.
func (s *Server) GuestToken(c *gin.Context) {
	var req guestTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playerID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(playerID, req.PlayerName)
	if err != nil {
		s.logger.Error("failed to issue guest token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"playerId":   playerID,
		"playerName": req.PlayerName,
		"token":      token,
		"expiresAt":  expiresAt.Unix(),
	})
}

// ListRooms returns joinable public lobbies.
func (s *Server) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.ListPublicWaiting())
}

// GetRoom returns the lobby snapshot for one join code.
func (s *Server) GetRoom(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	rm, err := s.manager.GetRoom(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, rm.Snapshot())
}

// VoiceToken issues an Agora token for a room's voice channel. Only members
// of the room may ask for one.
func (s *Server) VoiceToken(c *gin.Context) {
	if s.voice == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice is not configured"})
		return
	}
	code := strings.ToUpper(c.Param("code"))
	playerID := c.Query("playerId")
	if playerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playerId is required"})
		return
	}

	rm, err := s.manager.GetRoom(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if !rm.HasMember(playerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}

	token, err := s.voice.RoomToken(code, playerID)
	if err != nil {
		s.logger.Error("failed to build voice token",
			zap.String("room", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build voice token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"channel": code,
		"appId":   s.voice.AppID(),
	})
}
