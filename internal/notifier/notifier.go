package notifier

import (
	"context"

	"github.com/google/uuid"
)

// Event announces that a message landed in a room's log. Origin carries the
// client id of the sender's session so the publishing process can keep
// excluding the sender locally; other processes see an empty match and
// deliver to everyone.
type Event struct {
	RoomID uuid.UUID `json:"room_id"`
	Seq    int64     `json:"seq"`
	Origin string    `json:"origin,omitempty"`
}

// Publisher announces appended messages to every relay process.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
