package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meal_planner/internal/domain"
	"meal_planner/pkg/errors"
)

// memoryMessageRepository keeps the same contract as the Postgres store but
// holds everything in process memory. Used by tests and local development.
type memoryMessageRepository struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*memoryRoomLog
}

type memoryRoomLog struct {
	mu       sync.Mutex
	lastSeq  int64
	messages []*domain.ChatMessage
}

func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		rooms: make(map[uuid.UUID]*memoryRoomLog),
	}
}

func (r *memoryMessageRepository) ProvisionRoom(ctx context.Context, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = &memoryRoomLog{}
	}
	return nil
}

func (r *memoryMessageRepository) Append(ctx context.Context, roomID, senderID uuid.UUID, senderName, body string) (*domain.ChatMessage, error) {
	log, err := r.room(roomID)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	log.lastSeq++
	message := &domain.ChatMessage{
		RoomID:     roomID,
		Seq:        log.lastSeq,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	log.messages = append(log.messages, message)

	return message, nil
}

func (r *memoryMessageRepository) Get(ctx context.Context, roomID uuid.UUID, seq int64) (*domain.ChatMessage, error) {
	log, err := r.room(roomID)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	for _, m := range log.messages {
		if m.Seq == seq {
			return m, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memoryMessageRepository) ListAll(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	return r.filter(roomID, func(*domain.ChatMessage) bool { return true })
}

func (r *memoryMessageRepository) ListSince(ctx context.Context, roomID uuid.UUID, since time.Time, afterSeq int64) ([]*domain.ChatMessage, error) {
	if afterSeq > 0 {
		return r.filter(roomID, func(m *domain.ChatMessage) bool {
			if m.CreatedAt.After(since) {
				return true
			}
			return m.CreatedAt.Equal(since) && m.Seq > afterSeq
		})
	}
	return r.filter(roomID, func(m *domain.ChatMessage) bool {
		return m.CreatedAt.After(since)
	})
}

func (r *memoryMessageRepository) Search(ctx context.Context, roomID uuid.UUID, query string) ([]*domain.ChatMessage, error) {
	needle := strings.ToLower(query)
	return r.filter(roomID, func(m *domain.ChatMessage) bool {
		return strings.Contains(strings.ToLower(m.Body), needle)
	})
}

func (r *memoryMessageRepository) Paginate(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*domain.ChatMessage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	all, err := r.ListAll(ctx, roomID)
	if err != nil {
		return nil, err
	}

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*domain.ChatMessage{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *memoryMessageRepository) RemoveRoom(ctx context.Context, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	return nil
}

func (r *memoryMessageRepository) room(roomID uuid.UUID) (*memoryRoomLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log, ok := r.rooms[roomID]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return log, nil
}

func (r *memoryMessageRepository) filter(roomID uuid.UUID, keep func(*domain.ChatMessage) bool) ([]*domain.ChatMessage, error) {
	log, err := r.room(roomID)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	out := []*domain.ChatMessage{}
	for _, m := range log.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
