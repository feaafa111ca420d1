// Package voice issues Agora RTC tokens for per-room voice channels. The
// channel name is the room's join code.
package voice

import (
	"fmt"
	"time"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"

	"github.com/duskveil/onenight/backend/internal/config"
)

type Service struct {
	appID          string
	appCertificate string
	tokenExpiry    uint32
}

// NewService returns nil when Agora is unconfigured; callers treat a nil
// service as "voice disabled".
func NewService(cfg config.AgoraConfig) *Service {
	if cfg.AppID == "" || cfg.AppCertificate == "" {
		return nil
	}
	return &Service{
		appID:          cfg.AppID,
		appCertificate: cfg.AppCertificate,
		tokenExpiry:    cfg.TokenExpiry,
	}
}

// RoomToken builds a publisher token for a room's voice channel, keyed by
// the player's stable id.
func (s *Service) RoomToken(roomCode, playerID string) (string, error) {
	if err := validateChannelName(roomCode); err != nil {
		return "", err
	}
	expireTime := uint32(time.Now().Unix()) + s.tokenExpiry
	token, err := rtctokenbuilder.BuildTokenWithUserAccount(
		s.appID,
		s.appCertificate,
		roomCode,
		playerID,
		rtctokenbuilder.RolePublisher,
		expireTime,
	)
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	return token, nil
}

// AppID returns the Agora App ID clients need alongside the token.
func (s *Service) AppID() string {
	return s.appID
}

func validateChannelName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("channel name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("channel name too long (max 64 characters)")
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '_' || char == '-') {
			return fmt.Errorf("channel name contains invalid characters")
		}
	}
	return nil
}
