package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meal_planner/internal/domain"
	"meal_planner/internal/hub"
	"meal_planner/internal/notifier"
	"meal_planner/internal/repository"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

type ChatService interface {
	// Publish appends the message and fans it out to the sender's room,
	// excluding the sender. Append and fan-out are serialized per room so
	// observers never see broadcasts out of persisted order.
	Publish(ctx context.Context, sender *hub.Client, body string) (*domain.ChatMessage, error)

	// HandleNotification re-reads a message announced by another process
	// and re-broadcasts it to the locally connected sessions.
	HandleNotification(event notifier.Event)

	History(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error)
	Sync(ctx context.Context, roomID uuid.UUID, since time.Time, afterSeq int64) ([]*domain.ChatMessage, error)
	Search(ctx context.Context, roomID uuid.UUID, query string) ([]*domain.ChatMessage, error)
	Page(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*domain.ChatMessage, error)
}

type chatService struct {
	messageRepo repository.MessageRepository
	hub         *hub.Hub
	notifier    notifier.Publisher
	roomLocks   keyedMutex
	log         logger.Logger
}

func NewChatService(messageRepo repository.MessageRepository, h *hub.Hub, pub notifier.Publisher, log logger.Logger) ChatService {
	return &chatService{
		messageRepo: messageRepo,
		hub:         h,
		notifier:    pub,
		log:         log,
	}
}

func (s *chatService) Publish(ctx context.Context, sender *hub.Client, body string) (*domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.ErrBadRequest
	}

	roomID := sender.RoomID
	unlock := s.roomLocks.lock(roomID)
	defer unlock()

	message, err := s.messageRepo.Append(ctx, roomID, sender.UserID, sender.Username, body)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		event := notifier.Event{RoomID: roomID, Seq: message.Seq, Origin: sender.ID}
		pubErr := s.notifier.Publish(ctx, event)
		if pubErr == nil {
			return message, nil
		}
		// Degraded: cross-process delivery waits for catch-up reads, but
		// local sessions still get the message now.
		s.log.Warn("Notifier publish failed, broadcasting locally", "room_id", roomID, "seq", message.Seq, "error", pubErr)
	}

	delivered := s.hub.Broadcast(roomID, payloadFor(message, domain.PayloadTypeMessage), sender.ID)
	s.log.Debug("Message fanned out", "room_id", roomID, "seq", message.Seq, "delivered", delivered)

	return message, nil
}

func (s *chatService) HandleNotification(event notifier.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	message, err := s.messageRepo.Get(ctx, event.RoomID, event.Seq)
	if err != nil {
		s.log.Warn("Failed to re-read notified message", "room_id", event.RoomID, "seq", event.Seq, "error", err)
		return
	}

	delivered := s.hub.Broadcast(event.RoomID, payloadFor(message, domain.PayloadTypeNotification), event.Origin)
	s.log.Debug("Notification fanned out", "room_id", event.RoomID, "seq", event.Seq, "delivered", delivered)
}

func (s *chatService) History(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	return s.messageRepo.ListAll(ctx, roomID)
}

func (s *chatService) Sync(ctx context.Context, roomID uuid.UUID, since time.Time, afterSeq int64) ([]*domain.ChatMessage, error) {
	return s.messageRepo.ListSince(ctx, roomID, since, afterSeq)
}

func (s *chatService) Search(ctx context.Context, roomID uuid.UUID, query string) ([]*domain.ChatMessage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrBadRequest
	}
	return s.messageRepo.Search(ctx, roomID, query)
}

func (s *chatService) Page(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*domain.ChatMessage, error) {
	return s.messageRepo.Paginate(ctx, roomID, page, pageSize)
}

func payloadFor(message *domain.ChatMessage, payloadType string) domain.BroadcastPayload {
	return domain.BroadcastPayload{
		Timestamp: message.CreatedAt,
		Seq:       message.Seq,
		Sender:    message.SenderName,
		Content:   message.Body,
		Type:      payloadType,
	}
}

// keyedMutex serializes append+fanout per room id; appends to different
// rooms proceed fully in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
