package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"meal_planner/internal/config"
	"meal_planner/internal/domain"
	"meal_planner/internal/hub"
	"meal_planner/internal/service"
	"meal_planner/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the frontend domain is fixed
	},
}

type WebSocketHandler struct {
	authService service.AuthService
	chatService service.ChatService
	hub         *hub.Hub
	cfg         config.WebSocketConfig
	log         logger.Logger
}

func NewWebSocketHandler(authService service.AuthService, chatService service.ChatService, h *hub.Hub, cfg config.WebSocketConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		authService: authService,
		chatService: chatService,
		hub:         h,
		cfg:         cfg,
		log:         log,
	}
}

// HandleChat runs one live session: authenticate, join the room, relay
// inbound frames through append+fanout, leave on disconnect. Auth failures
// close with 1008 before the session ever joins the registry.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	token := c.Query("token")
	if token == "" {
		h.closePolicyViolation(conn, "missing token")
		return
	}

	user, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.closePolicyViolation(conn, "invalid token")
		return
	}

	client := hub.NewClient(user.ID, user.DisplayName, roomID, conn, h.cfg, h.log)
	h.hub.Join(client)
	h.log.Info("Session opened", "client_id", client.ID, "user_id", user.ID, "room_id", roomID)

	go client.WritePump()
	client.ReadPump(h.hub, h.relay)

	h.log.Info("Session closed", "client_id", client.ID, "room_id", roomID)
}

// relay handles one inbound frame. A store failure is reported to the
// sender as an error frame; the session stays open.
func (h *WebSocketHandler) relay(client *hub.Client, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.chatService.Publish(ctx, client, string(data)); err != nil {
		h.log.Warn("Failed to publish message", "client_id", client.ID, "room_id", client.RoomID, "error", err)
		client.SendPayload(domain.BroadcastPayload{
			Timestamp: time.Now(),
			Sender:    "server",
			Content:   err.Error(),
			Type:      domain.PayloadTypeError,
		})
	}
}

func (h *WebSocketHandler) closePolicyViolation(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	conn.Close()
}
