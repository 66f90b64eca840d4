package roomjoin

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/convene-app/backend/internal/models"
)

// Transport errors surfaced by video-transport implementations. The
// controller recovers from both; neither is fatal to the client.
var (
	// ErrRoomNotFound means the target room does not resolve upstream.
	ErrRoomNotFound = errors.New("room does not exist")
	// ErrTransportNotReady means the video collaborator is not initialized
	// yet; the join is deferred and retried, not abandoned.
	ErrTransportNotReady = errors.New("video transport not ready")
)

// Transport is the external video-conferencing collaborator. Join/leave may
// block or fail asynchronously; the controller never waits on them inside
// its event loop.
type Transport interface {
	JoinRoom(ctx context.Context, address, displayName string) error
	LeaveRoom(ctx context.Context) error
}

// Provisioner creates a deterministically-named replacement room when the
// assigned one is missing upstream.
type Provisioner interface {
	EnsureRoom(ctx context.Context, sessionID uuid.UUID, room models.Room) (address string, err error)
}

// Republisher pushes a corrected snapshot back to the shared store so other
// clients converge on the same fallback room.
type Republisher interface {
	Publish(ctx context.Context, snap *models.Snapshot) error
}
