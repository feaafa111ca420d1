package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/duskveil/onenight/backend/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the guest identity carried in a session token.
type Claims struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies guest tokens. Guests have no account; the
// token only pins a stable player id to a display name so reconnection can
// prove identity.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.Secret),
		expiry: time.Duration(cfg.ExpiryHours) * time.Hour,
	}
}

// Issue signs a token for the given identity.
func (s *TokenService) Issue(playerID, playerName string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.expiry)
	claims := Claims{
		PlayerID:   playerID,
		PlayerName: playerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify implements the gateway's token check.
func (s *TokenService) Verify(tokenString string) (playerID, playerName string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.PlayerID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.PlayerID, claims.PlayerName, nil
}
