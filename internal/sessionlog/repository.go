package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRow is one persisted state machine transition.
type EventRow struct {
	ID            int64     `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	Event         string    `json:"event"`
	Status        string    `json:"status"`
	StageIndex    int       `json:"stage_index"`
	SubstageIndex int       `json:"substage_index"`
	RoomCount     int       `json:"room_count"`
	Participants  int       `json:"participants"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Summary is the post-session digest generated by the worker.
type Summary struct {
	SessionID   uuid.UUID `json:"session_id"`
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Repository handles session_events and session_summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session event log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one transition event.
func (r *Repository) Insert(ctx context.Context, row *EventRow) error {
	const q = `INSERT INTO session_events (session_id, event, status, stage_index, substage_index, room_count, participants, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.pool.QueryRow(ctx, q, row.SessionID, row.Event, row.Status, row.StageIndex, row.SubstageIndex, row.RoomCount, row.Participants, row.OccurredAt).
		Scan(&row.ID)
}

// ListBySession returns a session's transition log in order.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]EventRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event, status, stage_index, substage_index, room_count, participants, occurred_at
		 FROM session_events WHERE session_id = $1 ORDER BY occurred_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []EventRow
	for rows.Next() {
		var row EventRow
		if err := rows.Scan(&row.ID, &row.SessionID, &row.Event, &row.Status, &row.StageIndex, &row.SubstageIndex, &row.RoomCount, &row.Participants, &row.OccurredAt); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

// SaveSummary upserts the session digest.
func (r *Repository) SaveSummary(ctx context.Context, sessionID uuid.UUID, summary string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_summaries (session_id, summary, generated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (session_id) DO UPDATE SET summary = EXCLUDED.summary, generated_at = NOW()`,
		sessionID, summary)
	return err
}

// GetSummary returns the session digest, or nil when not generated yet.
func (r *Repository) GetSummary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	const q = `SELECT session_id, summary, generated_at FROM session_summaries WHERE session_id = $1`
	var s Summary
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&s.SessionID, &s.Summary, &s.GeneratedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
