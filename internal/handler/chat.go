package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"meal_planner/internal/domain"
	"meal_planner/internal/service"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

// MessageView is the read-path rendering of a stored message. Type is
// sent/received relative to the requesting user.
type MessageView struct {
	Seq       int64     `json:"seq"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID, userID, ok := roomAndUser(c)
	if !ok {
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, renderMessages(messages, userID))
}

func (h *ChatHandler) SyncMessages(c *gin.Context) {
	roomID, userID, ok := roomAndUser(c)
	if !ok {
		return
	}

	sinceParam := c.Query("since")
	if sinceParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since parameter required"})
		return
	}
	since, err := time.Parse(time.RFC3339Nano, sinceParam)
	if err != nil {
		if since, err = time.Parse(time.RFC3339, sinceParam); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp format"})
			return
		}
	}

	afterSeq, _ := strconv.ParseInt(c.DefaultQuery("after_seq", "0"), 10, 64)

	messages, err := h.chatService.Sync(c.Request.Context(), roomID, since, afterSeq)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, renderMessages(messages, userID))
}

func (h *ChatHandler) SearchMessages(c *gin.Context) {
	roomID, userID, ok := roomAndUser(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter required"})
		return
	}

	messages, err := h.chatService.Search(c.Request.Context(), roomID, query)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, renderMessages(messages, userID))
}

func (h *ChatHandler) GetMessagePage(c *gin.Context) {
	roomID, userID, ok := roomAndUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	messages, err := h.chatService.Page(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, renderMessages(messages, userID))
}

func roomAndUser(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return uuid.Nil, uuid.Nil, false
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}

	return roomID, userID.(uuid.UUID), true
}

func renderMessages(messages []*domain.ChatMessage, userID uuid.UUID) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		viewType := "received"
		if m.SenderID == userID {
			viewType = "sent"
		}
		views = append(views, MessageView{
			Seq:       m.Seq,
			Sender:    m.SenderName,
			Content:   m.Body,
			Timestamp: m.CreatedAt,
			Type:      viewType,
		})
	}
	return views
}
