package video

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/convene-app/backend/internal/models"
)

// Rooms derives provider room addresses. Addresses are deterministic in
// (session, room) so independently recovering clients converge on the same
// name; the provider creates rooms on first join.
type Rooms struct {
	prefix string
}

// NewRooms creates an address provider. prefix namespaces rooms per
// deployment (e.g. "convene").
func NewRooms(prefix string) *Rooms {
	if prefix == "" {
		prefix = "convene"
	}
	return &Rooms{prefix: prefix}
}

// AddressFor returns the provider address for a room.
func (r *Rooms) AddressFor(sessionID, roomID uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", r.prefix, sessionID, roomID)
}

// EnsureRoom implements roomjoin.Provisioner: the deterministic address is
// the replacement room; the provider materializes it on first join.
func (r *Rooms) EnsureRoom(_ context.Context, sessionID uuid.UUID, room models.Room) (string, error) {
	return r.AddressFor(sessionID, room.ID), nil
}
