// Package video integrates with the external video-conferencing provider:
// deterministic room addresses and short-lived room-scoped join tokens for
// the browser SDK. Media itself never touches this process.
package video

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid room token")

// RoomClaims is the token handed to the provider SDK: it grants one
// participant entry to one room of one session.
type RoomClaims struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	RoomAddress   string    `json:"room_address"`
	DisplayName   string    `json:"display_name"`
	jwt.RegisteredClaims
}

// TokenService mints and validates room join tokens.
type TokenService struct {
	secret    []byte
	expireMin int
}

// NewTokenService creates a room token service.
func NewTokenService(secret string, expireMinutes int) *TokenService {
	return &TokenService{secret: []byte(secret), expireMin: expireMinutes}
}

// Generate mints a join token for the given room address.
func (s *TokenService) Generate(sessionID, participantID uuid.UUID, roomAddress, displayName string) (string, error) {
	if roomAddress == "" {
		return "", fmt.Errorf("room address required")
	}
	claims := RoomClaims{
		SessionID:     sessionID,
		ParticipantID: participantID,
		RoomAddress:   roomAddress,
		DisplayName:   displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireMin) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a room token, returning its claims or ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*RoomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
