package video

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convene-app/backend/internal/models"
)

func TestTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewTokenService("test-secret", 15)
	sessionID := uuid.New()
	participantID := uuid.New()

	token, err := svc.Generate(sessionID, participantID, "convene-abc-def", "ada")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, sessionID, claims.SessionID)
	require.Equal(t, participantID, claims.ParticipantID)
	require.Equal(t, "convene-abc-def", claims.RoomAddress)
	require.Equal(t, "ada", claims.DisplayName)
}

func TestTokenService_RejectsForeignSignature(t *testing.T) {
	token, err := NewTokenService("secret-a", 15).Generate(uuid.New(), uuid.New(), "room", "ada")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", 15).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RequiresRoomAddress(t *testing.T) {
	_, err := NewTokenService("secret", 15).Generate(uuid.New(), uuid.New(), "", "ada")
	require.Error(t, err)
}

func TestRooms_DeterministicAddresses(t *testing.T) {
	rooms := NewRooms("convene")
	sessionID := uuid.New()
	roomID := uuid.New()

	a := rooms.AddressFor(sessionID, roomID)
	b := rooms.AddressFor(sessionID, roomID)
	require.Equal(t, a, b)

	addr, err := rooms.EnsureRoom(context.Background(), sessionID, models.Room{ID: roomID, Name: "Room 1", Type: "quad"})
	require.NoError(t, err)
	require.Equal(t, a, addr)
}
