package handler

import (
	"meal_planner/internal/config"
	"meal_planner/internal/hub"
	"meal_planner/internal/service"
	"meal_planner/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Room      *RoomHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, h *hub.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(),
		Auth:      NewAuthHandler(services.Auth, log),
		Room:      NewRoomHandler(services.Room, log),
		Chat:      NewChatHandler(services.Chat, log),
		WebSocket: NewWebSocketHandler(services.Auth, services.Chat, h, cfg.WebSocket, log),
	}
}
