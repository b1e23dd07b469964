package domain

import (
	"time"

	"github.com/google/uuid"
)

// Chat is the persisted conversation record. Participants always holds at
// least one user id while the chat exists.
type Chat struct {
	ID           uuid.UUID   `json:"id"`
	DisplayName  string      `json:"display_name"`
	Participants []uuid.UUID `json:"participants"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActivity time.Time   `json:"last_activity"`
}

// ChatMessage is one row of a chat's append-only log. Seq is scoped per
// room and assigned by the store, which is the single ordering authority.
type ChatMessage struct {
	RoomID     uuid.UUID `json:"room_id"`
	Seq        int64     `json:"seq"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// BroadcastPayload is the wire format pushed to live sessions.
type BroadcastPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
}

const (
	// PayloadTypeMessage marks a message fanned out by the process that
	// accepted it; PayloadTypeNotification marks a store-triggered
	// re-broadcast arriving through the change notifier.
	PayloadTypeMessage      = "message"
	PayloadTypeNotification = "notification"
	PayloadTypeError        = "error"
)
