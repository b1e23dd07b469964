package service

import (
	"context"

	"meal_planner/internal/config"
	"meal_planner/internal/repository"
	"meal_planner/pkg/logger"
)

type RateLimitService interface {
	// Allow reports whether the caller identified by key is inside the
	// fixed window budget. Counter errors fail open.
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimitService struct {
	repo repository.RateLimitRepository
	cfg  config.RateLimitConfig
	log  logger.Logger
}

func NewRateLimitService(repo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{repo: repo, cfg: cfg, log: log}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	count, err := s.repo.Hit(ctx, "ratelimit:"+key, s.cfg.Window)
	if err != nil {
		s.log.Warn("Rate limit counter unavailable, allowing request", "key", key, "error", err)
		return true, err
	}
	return count <= int64(s.cfg.Requests), nil
}
