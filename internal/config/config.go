package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Rooms    RoomsConfig
	Gateway  GatewayConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Agora    AgoraConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Environment    string
	AllowedOrigins []string
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RoomsConfig struct {
	MaxRooms       int
	RoomTimeout    time.Duration
	GracePeriod    time.Duration
	GraceCap       int
	TimeoutProfile string
}

type GatewayConfig struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
	MessagesPerSec  int
	SendQueueSize   int
}

type DatabaseConfig struct {
	// URL enables the game history recorder; empty disables it.
	URL string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type AgoraConfig struct {
	AppID          string
	AppCertificate string
	TokenExpiry    uint32
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("HOST", "0.0.0.0"),
			Port:           getEnvAsInt("PORT", 8080),
			Environment:    getEnv("ENVIRONMENT", "development"),
			AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		},
		Rooms: RoomsConfig{
			MaxRooms:       getEnvAsInt("MAX_ROOMS", 500),
			RoomTimeout:    getEnvAsDuration("ROOM_TIMEOUT_MS", 10*time.Minute),
			GracePeriod:    getEnvAsDuration("GRACE_PERIOD_MS", 30*time.Second),
			GraceCap:       getEnvAsInt("GRACE_CAP_PER_ROOM", 3),
			TimeoutProfile: getEnv("TIMEOUT_PROFILE", "casual"),
		},
		Gateway: GatewayConfig{
			PingInterval:    getEnvAsDuration("PING_INTERVAL_MS", 30*time.Second),
			PongTimeout:     getEnvAsDuration("PONG_TIMEOUT_MS", 60*time.Second),
			MaxMessageBytes: int64(getEnvAsInt("MAX_MESSAGE_BYTES", 16*1024)),
			MessagesPerSec:  getEnvAsInt("MESSAGES_PER_SEC", 20),
			SendQueueSize:   getEnvAsInt("SEND_QUEUE_SIZE", 64),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		Agora: AgoraConfig{
			AppID:          getEnv("AGORA_APP_ID", ""),
			AppCertificate: getEnv("AGORA_APP_CERTIFICATE", ""),
			TokenExpiry:    uint32(getEnvAsInt("AGORA_TOKEN_EXPIRY", 3600)),
		},
	}

	// Validate required fields (only in production)
	if cfg.Server.Environment == "production" {
		if cfg.JWT.Secret == "change-me-in-production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	if cfg.Gateway.PongTimeout <= cfg.Gateway.PingInterval {
		return nil, fmt.Errorf("PONG_TIMEOUT_MS must exceed PING_INTERVAL_MS")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
