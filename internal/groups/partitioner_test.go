package groups

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/convene-app/backend/internal/models"
)

func roster(n int, withHost bool) []models.Participant {
	list := make([]models.Participant, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, models.Participant{
			ID:     uuid.New(),
			Name:   fmt.Sprintf("participant-%d", i),
			IsHost: withHost && i == 0,
			Status: models.ParticipantActive,
		})
	}
	return list
}

// TestPartition_CoversRosterExactlyOnce verifies the core invariant: rooms
// are pairwise disjoint, no one exceeds capacity, and the union of all room
// membership equals the roster.
func TestPartition_CoversRosterExactlyOnce(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		token     string
		capacity  int
		wantRooms int
	}{
		{"pairs of 10", 10, TokenPair, 2, 5},
		{"pairs of 11", 11, TokenPair, 2, 6},
		{"triads of 7", 7, TokenTriad, 3, 3},
		{"quads of 4", 4, TokenQuad, 4, 1},
		{"circles of 25", 25, TokenCircleOfSix, 6, 5},
		{"individual 3", 3, TokenIndividual, 1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			participants := roster(tc.size, false)
			rooms, err := Partition(participants, tc.token, nil, false)
			require.NoError(t, err)
			require.Len(t, rooms, tc.wantRooms)

			seen := make(map[uuid.UUID]int)
			for _, room := range rooms {
				require.LessOrEqual(t, len(room.ParticipantIDs), tc.capacity)
				require.NotEmpty(t, room.ParticipantIDs, "no empty rooms")
				require.Equal(t, tc.token, room.Type)
				for _, id := range room.ParticipantIDs {
					seen[id]++
				}
			}
			require.Len(t, seen, tc.size, "every participant placed")
			for id, count := range seen {
				require.Equal(t, 1, count, "participant %s placed more than once", id)
			}
		})
	}
}

// TestPartition_HostExcludedFromBreakouts verifies the hard invariant: the
// host never lands in a breakout room and is assigned to the main room.
func TestPartition_HostExcludedFromBreakouts(t *testing.T) {
	for _, token := range []string{TokenPair, TokenTriad, TokenQuad, TokenCircleOfSix, TokenIndividual} {
		t.Run(token, func(t *testing.T) {
			participants := roster(7, true)
			host := participants[0]
			rooms, err := Partition(participants, token, nil, false)
			require.NoError(t, err)

			var mainRoom *models.Room
			for i := range rooms {
				if rooms[i].Type == models.RoomTypeMain {
					require.Nil(t, mainRoom, "exactly one main room")
					mainRoom = &rooms[i]
					continue
				}
				require.False(t, rooms[i].Contains(host.ID), "host in breakout room %s", rooms[i].Name)
			}
			require.NotNil(t, mainRoom)
			require.True(t, mainRoom.Contains(host.ID))
		})
	}
}

// Roster of 7 (1 host + 6 others) with triads: 2 breakout rooms of 3, host
// in main; whole-group then holds all 7 including the host.
func TestPartition_HostScenario(t *testing.T) {
	participants := roster(7, true)

	rooms, err := Partition(participants, TokenTriad, nil, false)
	require.NoError(t, err)
	require.Len(t, rooms, 3) // 2 triads + main

	var triads, mains int
	for _, room := range rooms {
		switch room.Type {
		case TokenTriad:
			triads++
			require.Len(t, room.ParticipantIDs, 3)
		case models.RoomTypeMain:
			mains++
			require.Len(t, room.ParticipantIDs, 1)
		}
	}
	require.Equal(t, 2, triads)
	require.Equal(t, 1, mains)

	rooms, err = Partition(participants, TokenWholeGroup, nil, false)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, models.RoomTypeMain, rooms[0].Type)
	require.Len(t, rooms[0].ParticipantIDs, 7)
}

func TestPartition_PreserveReturnsPriorUnchanged(t *testing.T) {
	participants := roster(12, false)
	prior, err := Partition(participants, TokenQuad, nil, false)
	require.NoError(t, err)

	got, err := Partition(participants, TokenPair, prior, true)
	require.NoError(t, err)
	require.Equal(t, prior, got)
}

func TestPartition_PreserveWithEmptyPriorRepartitions(t *testing.T) {
	participants := roster(6, false)
	rooms, err := Partition(participants, TokenTriad, nil, true)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
}

func TestPartition_EmptyRoster(t *testing.T) {
	rooms, err := Partition(nil, TokenPair, nil, false)
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestPartition_UnknownToken(t *testing.T) {
	_, err := Partition(roster(4, false), "dozen", nil, false)
	require.ErrorIs(t, err, ErrUnknownGroupSize)
}
