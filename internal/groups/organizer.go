package groups

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/convene-app/backend/internal/models"
)

// Fixed fan-out for large cohorts: rooms of 4, five rooms per zone
// (~20 people), five zones per region (~100 people).
const (
	OrganizerRoomCapacity = 4
	RoomsPerZone          = 5
	ZonesPerRegion        = 5
)

// LargeScaleThreshold is the roster size above which flat partitioning
// gives way to the hierarchical organizer.
const LargeScaleThreshold = 48

// ErrEmptyRoster is returned when Organize is called with no participants.
var ErrEmptyRoster = errors.New("cannot organize an empty roster")

// Organize builds the region -> zone -> room tree for a large cohort.
// Participants are shuffled once, then placed in a deterministic walk that
// fills each room to capacity before opening the next, so every room except
// possibly the last is full. The caller excludes the host beforehand.
//
// Re-running Organize on a changed roster recomputes from scratch; there is
// no incremental reassignment.
func Organize(sessionID uuid.UUID, participants []models.Participant) (*models.OrganizationStructure, error) {
	n := len(participants)
	if n == 0 {
		return nil, ErrEmptyRoster
	}

	shuffled := make([]models.Participant, n)
	copy(shuffled, participants)
	rand.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	totalRooms := ceilDiv(n, OrganizerRoomCapacity)
	totalZones := ceilDiv(totalRooms, RoomsPerZone)
	totalRegions := ceilDiv(totalZones, ZonesPerRegion)

	now := time.Now()
	org := &models.OrganizationStructure{
		SessionID:         sessionID,
		TotalParticipants: n,
		TotalRooms:        totalRooms,
		TotalZones:        totalZones,
		CreatedAt:         now,
	}

	next := 0 // index of the next unplaced participant
	roomNum := 0
	zoneNum := 0
	for r := 0; r < totalRegions; r++ {
		region := models.Region{
			ID:   uuid.New(),
			Name: fmt.Sprintf("Region %d", r+1),
		}
		for z := 0; z < ZonesPerRegion && zoneNum < totalZones; z++ {
			zoneNum++
			zone := models.Zone{
				ID:   uuid.New(),
				Name: fmt.Sprintf("Zone %d", zoneNum),
			}
			for m := 0; m < RoomsPerZone && roomNum < totalRooms; m++ {
				roomNum++
				room := models.Room{
					ID:        uuid.New(),
					Name:      fmt.Sprintf("Room %d", roomNum),
					Type:      TokenQuad,
					CreatedAt: now,
				}
				for len(room.ParticipantIDs) < OrganizerRoomCapacity && next < n {
					room.ParticipantIDs = append(room.ParticipantIDs, shuffled[next].ID)
					next++
				}
				zone.ParticipantCount += len(room.ParticipantIDs)
				if len(room.ParticipantIDs) > 0 {
					zone.ActiveRooms++
				}
				zone.Rooms = append(zone.Rooms, room)
			}
			region.ParticipantCount += zone.ParticipantCount
			region.ActiveRooms += zone.ActiveRooms
			region.Zones = append(region.Zones, zone)
		}
		org.Regions = append(org.Regions, region)
	}
	return org, nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
