package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusPreparing SessionStatus = "preparing"
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// SubstageDefinition is one timed sub-phase within a stage.
type SubstageDefinition struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	GroupSize       string `json:"group_size"` // group-size token, see groups.Capacity
	DurationSeconds int    `json:"duration_seconds"`
	Prompt          string `json:"prompt,omitempty"`
	// PreserveGroups keeps the previous substage's rooms intact on entry
	// (e.g. a reflection substage held in the same rooms as the dialogue
	// that preceded it).
	PreserveGroups bool `json:"preserve_groups,omitempty"`
}

// StageDefinition is an ordered list of substages under a named stage.
// Immutable once a session starts.
type StageDefinition struct {
	Name      string               `json:"name"`
	Enabled   bool                 `json:"enabled"`
	Substages []SubstageDefinition `json:"substages"`
}

// SessionState is the live position of a session within its stage list.
// Owned exclusively by the stage machine in the server process; everything
// else sees read-only copies.
type SessionState struct {
	SessionID            uuid.UUID     `json:"session_id"`
	Status               SessionStatus `json:"status"`
	CurrentStageIndex    int           `json:"current_stage_index"`
	CurrentSubstageIndex int           `json:"current_substage_index"`
	StageStartedAt       time.Time     `json:"stage_started_at,omitempty"`
	SubstageStartedAt    time.Time     `json:"substage_started_at,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	PausedAt             *time.Time    `json:"paused_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
}

// Session is the persisted session record.
type Session struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	Status    SessionStatus     `json:"status"`
	Stages    []StageDefinition `json:"stages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
