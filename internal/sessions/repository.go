package sessions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convene-app/backend/internal/models"
)

// Repository handles session and participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session with its stage configuration.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, title, status, stages)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Status, s.Stages).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, title, status, stages, created_at, updated_at FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Title, &s.Status, &s.Stages, &s.CreatedAt, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all sessions, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, status, stages, created_at, updated_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Status, &s.Stages, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// UpdateStatus persists the session's lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	const q = `UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}

// AddParticipant inserts a roster member.
func (r *Repository) AddParticipant(ctx context.Context, sessionID uuid.UUID, p *models.Participant) error {
	const q = `INSERT INTO participants (id, session_id, name, is_host, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, joined_at`
	return r.pool.QueryRow(ctx, q, sessionID, p.Name, p.IsHost, p.Status).Scan(&p.ID, &p.JoinedAt)
}

// SetParticipantStatus marks a participant active or left.
func (r *Repository) SetParticipantStatus(ctx context.Context, sessionID, participantID uuid.UUID, status string) error {
	const q = `UPDATE participants SET status = $1 WHERE session_id = $2 AND id = $3`
	_, err := r.pool.Exec(ctx, q, status, sessionID, participantID)
	return err
}

// GetParticipant returns one roster member, or nil when absent.
func (r *Repository) GetParticipant(ctx context.Context, sessionID, participantID uuid.UUID) (*models.Participant, error) {
	const q = `SELECT id, name, is_host, status, joined_at FROM participants WHERE session_id = $1 AND id = $2`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, sessionID, participantID).Scan(&p.ID, &p.Name, &p.IsHost, &p.Status, &p.JoinedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListParticipants returns the session roster in join order.
func (r *Repository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_host, status, joined_at FROM participants WHERE session_id = $1 ORDER BY joined_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.IsHost, &p.Status, &p.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// HasHost reports whether an active host is already on the roster.
func (r *Repository) HasHost(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM participants WHERE session_id = $1 AND is_host AND status = $2 LIMIT 1`
	var exists int
	err := r.pool.QueryRow(ctx, q, sessionID, models.ParticipantActive).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
