package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/duskveil/onenight/backend/internal/api"
	"github.com/duskveil/onenight/backend/internal/config"
	"github.com/duskveil/onenight/backend/internal/history"
	"github.com/duskveil/onenight/backend/internal/logging"
	"github.com/duskveil/onenight/backend/internal/metrics"
	"github.com/duskveil/onenight/backend/internal/room"
	"github.com/duskveil/onenight/backend/internal/transport"
	"github.com/duskveil/onenight/backend/internal/voice"
)

// countingRecorder counts finished games per winning team before handing the
// summary to the optional history recorder.
type countingRecorder struct {
	next      room.GameRecorder
	completed *prometheus.CounterVec
}

func (c countingRecorder) RecordGame(s room.GameSummary) {
	if len(s.WinningTeams) == 0 {
		c.completed.WithLabelValues("none").Inc()
	}
	for _, team := range s.WinningTeams {
		c.completed.WithLabelValues(string(team)).Inc()
	}
	if c.next != nil {
		c.next.RecordGame(s)
	}
}

func main() {
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional game history archive.
	var recorder room.GameRecorder
	if cfg.Database.URL != "" {
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		rec, err := history.New(connectCtx, cfg.Database.URL, logger)
		connectCancel()
		if err != nil {
			logger.Fatal("failed to start history recorder", zap.Error(err))
		}
		defer rec.Close()
		recorder = rec
	} else {
		logger.Info("DATABASE_URL not set, game history disabled")
	}

	// Optional redis, backs the gateway rate limiter and health reporting.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	manager := room.NewManager(room.ManagerOptions{
		MaxRooms:    cfg.Rooms.MaxRooms,
		RoomTimeout: cfg.Rooms.RoomTimeout,
		Recon: room.ReconnectionOptions{
			GracePeriod:        cfg.Rooms.GracePeriod,
			PerRoomCap:         cfg.Rooms.GraceCap,
			AllowAfterTakeover: true,
		},
	}, countingRecorder{next: recorder, completed: m.GamesCompleted}, logger)
	defer manager.Close()
	metrics.RegisterRoomGauge(registry, manager.RoomCount)

	tokens := api.NewTokenService(cfg.JWT)
	voiceSvc := voice.NewService(cfg.Agora)
	if voiceSvc == nil {
		logger.Info("agora credentials not set, voice disabled")
	}

	gateway := transport.NewGateway(cfg.Gateway, manager, tokens, cfg.Server.AllowedOrigins, redisClient, m, logger)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(manager, tokens, voiceSvc, redisClient, logger)
	router := srv.Router(cfg.Server, http.HandlerFunc(gateway.HandleWS), registry)

	// No WriteTimeout: it would sever long-lived websocket sessions.
	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
