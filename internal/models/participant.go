package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant statuses.
const (
	ParticipantActive = "active"
	ParticipantLeft   = "left"
)

// Participant is one member of a session roster. At most one participant
// per session has IsHost set, and it is never changed after creation.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"is_host"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}
