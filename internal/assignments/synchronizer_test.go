package assignments

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convene-app/backend/internal/models"
)

func TestDecodeSnapshot_RoundTrip(t *testing.T) {
	sessionID := uuid.New()
	roomID := uuid.New()
	participantID := uuid.New()
	snap := &models.Snapshot{
		SessionID:            sessionID,
		Status:               models.StatusActive,
		CurrentStageIndex:    1,
		CurrentSubstageIndex: 2,
		Rooms: []models.Room{
			{ID: roomID, Name: "Room 1", Type: "triad", ParticipantIDs: []uuid.UUID{participantID}},
		},
		Assignments: []models.RoomAssignment{
			{ParticipantID: participantID, RoomID: roomID, RoomAddress: "convene-a-b", AssignedAt: time.Now()},
		},
		PublishedAt: time.Now(),
	}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	require.Equal(t, sessionID, got.SessionID)
	require.Equal(t, models.StatusActive, got.Status)
	require.Len(t, got.Rooms, 1)

	a := got.AssignmentFor(participantID)
	require.NotNil(t, a)
	require.Equal(t, roomID, a.RoomID)
	require.Nil(t, got.AssignmentFor(uuid.New()))
}

func TestDecodeSnapshot_MalformedDiscarded(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{"session_id": "`},
		{"not json at all", `<<<garbage>>>`},
		{"missing session id", `{"status": "active"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeSnapshot([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}
