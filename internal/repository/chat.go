package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meal_planner/internal/domain"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*domain.Chat, error)
	Update(ctx context.Context, chat *domain.Chat) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

func (r *chatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	participants, err := json.Marshal(chat.Participants)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chat_rooms (id, display_name, participants, last_seq, created_at, last_activity)
		VALUES ($1, $2, $3::jsonb, 0, now(), now())
		RETURNING created_at, last_activity
	`

	err = r.db.QueryRow(ctx, query, chat.ID, chat.DisplayName, string(participants)).
		Scan(&chat.CreatedAt, &chat.LastActivity)
	if err != nil {
		r.log.Error("Failed to create chat", "error", err)
		return err
	}

	return nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	query := `
		SELECT id, display_name, participants, created_at, last_activity
		FROM chat_rooms
		WHERE id = $1
	`

	return r.scanChat(r.db.QueryRow(ctx, query, id))
}

func (r *chatRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*domain.Chat, error) {
	member, err := json.Marshal([]uuid.UUID{userID})
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, display_name, participants, created_at, last_activity
		FROM chat_rooms
		WHERE participants @> $1::jsonb
		ORDER BY last_activity DESC
	`

	rows, err := r.db.Query(ctx, query, string(member))
	if err != nil {
		r.log.Error("Failed to list chats", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	chats := []*domain.Chat{}
	for rows.Next() {
		chat, err := r.scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (r *chatRepository) Update(ctx context.Context, chat *domain.Chat) error {
	participants, err := json.Marshal(chat.Participants)
	if err != nil {
		return err
	}

	query := `
		UPDATE chat_rooms
		SET display_name = $2, participants = $3::jsonb, last_activity = now()
		WHERE id = $1
		RETURNING last_activity
	`

	err = r.db.QueryRow(ctx, query, chat.ID, chat.DisplayName, string(participants)).
		Scan(&chat.LastActivity)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.ErrRoomNotFound
		}
		r.log.Error("Failed to update chat", "chat_id", chat.ID, "error", err)
		return err
	}

	return nil
}

// Delete removes the chat metadata row; the message log goes with it via
// the ON DELETE CASCADE on chat_messages.room_id.
func (r *chatRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_rooms WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete chat", "chat_id", id, "error", err)
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *chatRepository) scanChat(row rowScanner) (*domain.Chat, error) {
	chat := &domain.Chat{}
	var participants []byte
	var createdAt, lastActivity time.Time

	err := row.Scan(&chat.ID, &chat.DisplayName, &participants, &createdAt, &lastActivity)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrRoomNotFound
		}
		r.log.Error("Failed to scan chat", "error", err)
		return nil, err
	}

	if err := json.Unmarshal(participants, &chat.Participants); err != nil {
		r.log.Error("Failed to decode chat participants", "chat_id", chat.ID, "error", err)
		return nil, err
	}
	chat.CreatedAt = createdAt
	chat.LastActivity = lastActivity

	return chat, nil
}
