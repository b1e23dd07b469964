package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"meal_planner/internal/domain"
	"meal_planner/internal/repository"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

type RoomService interface {
	CreateChat(ctx context.Context, userID uuid.UUID, displayName string) (*domain.Chat, error)
	GetChat(ctx context.Context, chatID, userID uuid.UUID) (*domain.Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID) ([]*domain.Chat, error)
	UpdateMetadata(ctx context.Context, chatID, userID uuid.UUID, displayName *string, participants []uuid.UUID) (*domain.Chat, error)
	DeleteChat(ctx context.Context, chatID, userID uuid.UUID) error
}

type roomService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	log         logger.Logger
}

func NewRoomService(chatRepo repository.ChatRepository, messageRepo repository.MessageRepository, log logger.Logger) RoomService {
	return &roomService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		log:         log,
	}
}

func (s *roomService) CreateChat(ctx context.Context, userID uuid.UUID, displayName string) (*domain.Chat, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = fmt.Sprintf("Chat_%s", time.Now().UTC().Format("2006-01-02 15:04:05"))
	}

	chat := &domain.Chat{
		ID:           uuid.New(),
		DisplayName:  displayName,
		Participants: []uuid.UUID{userID},
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		s.log.Error("Failed to create chat", "user_id", userID, "error", err)
		return nil, err
	}

	// The metadata row anchors the message log; confirm it is readable so
	// a create-then-immediately-read never surfaces a false not-found.
	if err := s.messageRepo.ProvisionRoom(ctx, chat.ID); err != nil {
		s.log.Error("Chat created but log not provisioned", "chat_id", chat.ID, "error", err)
		return nil, err
	}

	s.log.Info("Chat created", "chat_id", chat.ID, "user_id", userID)
	return chat, nil
}

func (s *roomService) GetChat(ctx context.Context, chatID, userID uuid.UUID) (*domain.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(chat, userID) {
		return nil, errors.ErrForbidden
	}
	return chat, nil
}

func (s *roomService) ListChats(ctx context.Context, userID uuid.UUID) ([]*domain.Chat, error) {
	return s.chatRepo.ListByParticipant(ctx, userID)
}

func (s *roomService) UpdateMetadata(ctx context.Context, chatID, userID uuid.UUID, displayName *string, participants []uuid.UUID) (*domain.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(chat, userID) {
		return nil, errors.ErrForbidden
	}

	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		if name == "" {
			return nil, errors.ErrBadRequest
		}
		chat.DisplayName = name
	}
	if participants != nil {
		if len(participants) == 0 {
			return nil, errors.ErrNoParticipants
		}
		chat.Participants = participants
	}

	if err := s.chatRepo.Update(ctx, chat); err != nil {
		s.log.Error("Failed to update chat metadata", "chat_id", chatID, "error", err)
		return nil, err
	}

	return chat, nil
}

// DeleteChat removes the chat metadata and its message log together. The
// cascade on the metadata row already drops the messages; RemoveRoom is
// idempotent and covers a log orphaned by a past partial failure.
func (s *roomService) DeleteChat(ctx context.Context, chatID, userID uuid.UUID) error {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !isParticipant(chat, userID) {
		return errors.ErrForbidden
	}

	if err := s.chatRepo.Delete(ctx, chatID); err != nil {
		return err
	}
	if err := s.messageRepo.RemoveRoom(ctx, chatID); err != nil {
		s.log.Warn("Failed to drop message log after chat delete", "chat_id", chatID, "error", err)
	}

	s.log.Info("Chat deleted", "chat_id", chatID, "user_id", userID)
	return nil
}

func isParticipant(chat *domain.Chat, userID uuid.UUID) bool {
	for _, p := range chat.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
