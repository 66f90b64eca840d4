package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomTypeMain is the unbounded whole-group room. The host always lives
// here during breakout substages.
const RoomTypeMain = "main"

// Room is one conversational group for the duration of a substage.
// Type is either a group-size token or RoomTypeMain.
type Room struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Contains reports whether the room holds the given participant.
func (r Room) Contains(participantID uuid.UUID) bool {
	for _, id := range r.ParticipantIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// RoomAssignment maps one participant to their current room. Exactly one
// live assignment exists per participant at any instant.
type RoomAssignment struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	RoomID        uuid.UUID `json:"room_id"`
	RoomAddress   string    `json:"room_address"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// Snapshot is the full published state of rooms and assignments for a
// session at one instant. Snapshots are whole-document replacements;
// watchers never delta-apply.
type Snapshot struct {
	SessionID            uuid.UUID        `json:"session_id"`
	Status               SessionStatus    `json:"status"`
	CurrentStageIndex    int              `json:"current_stage_index"`
	CurrentSubstageIndex int              `json:"current_substage_index"`
	Rooms                []Room           `json:"rooms"`
	Assignments          []RoomAssignment `json:"assignments"`
	Participants         []Participant    `json:"participants"`
	PublishedAt          time.Time        `json:"published_at"`
}

// AssignmentFor returns the assignment for a participant id, or nil.
func (s *Snapshot) AssignmentFor(participantID uuid.UUID) *RoomAssignment {
	for i := range s.Assignments {
		if s.Assignments[i].ParticipantID == participantID {
			return &s.Assignments[i]
		}
	}
	return nil
}

// RoomByID returns the room with the given id, or nil.
func (s *Snapshot) RoomByID(roomID uuid.UUID) *Room {
	for i := range s.Rooms {
		if s.Rooms[i].ID == roomID {
			return &s.Rooms[i]
		}
	}
	return nil
}
