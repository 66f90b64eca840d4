package groups

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/convene-app/backend/internal/models"
)

// MainRoomName is the display name of the unbounded whole-group room.
const MainRoomName = "Main Room"

// Partition slices a roster into rooms for one substage.
//
// When preserve is true and prior is non-empty, prior is returned unchanged
// (reflection substages stay in the rooms that held the conversation).
// Otherwise participants are shuffled uniformly (no fixed seed; fresh
// groupings every substage are intentional) and cut into contiguous chunks
// of the token's capacity.
//
// The host is never placed in a breakout room: for any token other than
// whole-group the host is assigned to the main room instead. The host's
// process drives stage transitions and must stay reachable by everyone.
func Partition(participants []models.Participant, token string, prior []models.Room, preserve bool) ([]models.Room, error) {
	capacity, err := Capacity(token)
	if err != nil {
		return nil, err
	}

	if preserve && len(prior) > 0 {
		return prior, nil
	}

	now := time.Now()
	if capacity == CapacityAll {
		room := models.Room{
			ID:        uuid.New(),
			Name:      MainRoomName,
			Type:      models.RoomTypeMain,
			CreatedAt: now,
		}
		for _, p := range participants {
			room.ParticipantIDs = append(room.ParticipantIDs, p.ID)
		}
		return []models.Room{room}, nil
	}

	var host *models.Participant
	others := make([]models.Participant, 0, len(participants))
	for i := range participants {
		if participants[i].IsHost {
			host = &participants[i]
			continue
		}
		others = append(others, participants[i])
	}

	rand.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})

	// Never exceed ceil(n/capacity) rooms; chunk math and room inventory
	// must not diverge.
	maxRooms := (len(others) + capacity - 1) / capacity
	rooms := make([]models.Room, 0, maxRooms+1)
	for start := 0; start < len(others); start += capacity {
		if len(rooms) >= maxRooms {
			return nil, fmt.Errorf("partition: room count exceeds ceil(%d/%d)", len(others), capacity)
		}
		end := start + capacity
		if end > len(others) {
			end = len(others)
		}
		room := models.Room{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("Room %d", len(rooms)+1),
			Type:      token,
			CreatedAt: now,
		}
		for _, p := range others[start:end] {
			room.ParticipantIDs = append(room.ParticipantIDs, p.ID)
		}
		rooms = append(rooms, room)
	}

	if host != nil {
		rooms = append(rooms, models.Room{
			ID:             uuid.New(),
			Name:           MainRoomName,
			Type:           models.RoomTypeMain,
			ParticipantIDs: []uuid.UUID{host.ID},
			CreatedAt:      now,
		})
	}
	return rooms, nil
}
