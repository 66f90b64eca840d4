package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationStructure is the three-level region -> zone -> room tree used
// for large cohorts. Rooms at the leaves are the same Room shape used by
// flat partitioning. Rebuilt from scratch on reorganization; there is no
// incremental rebalancing.
type OrganizationStructure struct {
	SessionID         uuid.UUID `json:"session_id"`
	Regions           []Region  `json:"regions"`
	TotalParticipants int       `json:"total_participants"`
	TotalRooms        int       `json:"total_rooms"`
	TotalZones        int       `json:"total_zones"`
	CreatedAt         time.Time `json:"created_at"`
}

// Region groups ~100 participants across its zones.
type Region struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Zones            []Zone    `json:"zones"`
	ParticipantCount int       `json:"participant_count"`
	ActiveRooms      int       `json:"active_rooms"`
	EngagementScore  float64   `json:"engagement_score"`
}

// Zone groups ~20 participants across its rooms.
type Zone struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Rooms            []Room    `json:"rooms"`
	ParticipantCount int       `json:"participant_count"`
	ActiveRooms      int       `json:"active_rooms"`
	EngagementScore  float64   `json:"engagement_score"`
}

// AllRooms returns the leaf rooms of the structure in walk order.
func (o *OrganizationStructure) AllRooms() []Room {
	var rooms []Room
	for _, reg := range o.Regions {
		for _, z := range reg.Zones {
			rooms = append(rooms, z.Rooms...)
		}
	}
	return rooms
}
