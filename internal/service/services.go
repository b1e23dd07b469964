package service

import (
	"meal_planner/internal/config"
	"meal_planner/internal/hub"
	"meal_planner/internal/notifier"
	"meal_planner/internal/repository"
	"meal_planner/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Room      RoomService
	Chat      ChatService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, h *hub.Hub, pub notifier.Publisher, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		Room:      NewRoomService(repos.Chat, repos.Message, log),
		Chat:      NewChatService(repos.Message, h, pub, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
	}
}
