package groups

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Roster of 500: ceil(500/4)=125 rooms, ceil(125/5)=25 zones,
// ceil(25/5)=5 regions.
func TestOrganize_FanOut500(t *testing.T) {
	org, err := Organize(uuid.New(), roster(500, false))
	require.NoError(t, err)

	require.Equal(t, 500, org.TotalParticipants)
	require.Equal(t, 125, org.TotalRooms)
	require.Equal(t, 25, org.TotalZones)
	require.Len(t, org.Regions, 5)
	require.Len(t, org.AllRooms(), 125)
}

func TestOrganize_RoomsFilledBeforeMovingOn(t *testing.T) {
	cases := []struct {
		name string
		size int
	}{
		{"exact multiple", 80},
		{"one over", 81},
		{"small large-scale cohort", 53},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			org, err := Organize(uuid.New(), roster(tc.size, false))
			require.NoError(t, err)

			rooms := org.AllRooms()
			seen := make(map[uuid.UUID]bool)
			for i, room := range rooms {
				require.LessOrEqual(t, len(room.ParticipantIDs), OrganizerRoomCapacity)
				if i < len(rooms)-1 {
					// every room except possibly the very last is full
					require.Len(t, room.ParticipantIDs, OrganizerRoomCapacity, "room %d not full", i)
				}
				for _, id := range room.ParticipantIDs {
					require.False(t, seen[id])
					seen[id] = true
				}
			}
			require.Len(t, seen, tc.size)
		})
	}
}

func TestOrganize_AggregatesSumChildren(t *testing.T) {
	org, err := Organize(uuid.New(), roster(213, false))
	require.NoError(t, err)

	total := 0
	for _, region := range org.Regions {
		regionCount := 0
		for _, zone := range region.Zones {
			zoneCount := 0
			for _, room := range zone.Rooms {
				zoneCount += len(room.ParticipantIDs)
			}
			require.Equal(t, zoneCount, zone.ParticipantCount)
			regionCount += zone.ParticipantCount
		}
		require.Equal(t, regionCount, region.ParticipantCount)
		total += region.ParticipantCount
	}
	require.Equal(t, 213, total)
}

func TestOrganize_EmptyRoster(t *testing.T) {
	_, err := Organize(uuid.New(), nil)
	require.ErrorIs(t, err, ErrEmptyRoster)
}
