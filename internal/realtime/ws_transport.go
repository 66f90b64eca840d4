package realtime

import (
	"context"
	"encoding/json"

	"github.com/convene-app/backend/internal/roomjoin"
)

// wsTransport implements roomjoin.Transport over a client's send channel.
// The browser owns the actual media connection; the server tells it where
// to be via join_room / leave_room events. A full send buffer means the
// connection is backed up, reported as ErrTransportNotReady so the
// controller retries with backoff instead of dropping the move.
type wsTransport struct {
	c *Client
}

type joinRoomPayload struct {
	RoomAddress string `json:"room_address"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token,omitempty"`
}

func (t *wsTransport) JoinRoom(_ context.Context, address, displayName string) error {
	payload := joinRoomPayload{RoomAddress: address, DisplayName: displayName}
	if t.c.mintToken != nil {
		if tok, err := t.c.mintToken(address); err == nil {
			payload.Token = tok
		}
	}
	return t.send("join_room", payload)
}

func (t *wsTransport) LeaveRoom(_ context.Context) error {
	return t.send("leave_room", struct{}{})
}

func (t *wsTransport) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case t.c.send <- WSMessage{Event: event, Data: data}:
		return nil
	default:
		return roomjoin.ErrTransportNotReady
	}
}
