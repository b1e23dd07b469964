package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"meal_planner/internal/config"
	"meal_planner/internal/domain"
	"meal_planner/pkg/logger"
)

// Conn is the subset of *websocket.Conn the client needs; tests substitute
// an in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live session: a single connection of a single user joined
// to a single room.
type Client struct {
	ID       string
	UserID   uuid.UUID
	Username string
	RoomID   uuid.UUID

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cfg       config.WebSocketConfig
	log       logger.Logger
}

func NewClient(userID uuid.UUID, username string, roomID uuid.UUID, conn Conn, cfg config.WebSocketConfig, log logger.Logger) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		RoomID:   roomID,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
		cfg:      cfg,
		log:      log,
	}
}

// Close tears the session down exactly once; concurrent failure paths all
// funnel through here.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadPump feeds inbound text frames to handler until the connection drops,
// then leaves the room and closes. Runs on the session's own goroutine.
func (c *Client) ReadPump(h *Hub, handler func(*Client, []byte)) {
	defer func() {
		h.Leave(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close", "client_id", c.ID, "error", err)
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the send buffer onto the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendPayload queues a payload for this client only. Used for error frames.
func (c *Client) SendPayload(payload domain.BroadcastPayload) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return c.trySend(data)
}

// trySend reports false when the session is closed or its buffer is full;
// the caller treats either as an implicit disconnect.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
