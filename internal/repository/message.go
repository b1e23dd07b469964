package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"meal_planner/internal/domain"
	"meal_planner/pkg/errors"
	"meal_planner/pkg/logger"
)

// MessageRepository is the durable per-room message log. All listing
// methods return messages ascending by sequence id; reads on a room that
// was never provisioned (or was removed) fail with ErrRoomNotFound.
type MessageRepository interface {
	ProvisionRoom(ctx context.Context, roomID uuid.UUID) error
	Append(ctx context.Context, roomID, senderID uuid.UUID, senderName, body string) (*domain.ChatMessage, error)
	Get(ctx context.Context, roomID uuid.UUID, seq int64) (*domain.ChatMessage, error)
	ListAll(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error)
	ListSince(ctx context.Context, roomID uuid.UUID, since time.Time, afterSeq int64) ([]*domain.ChatMessage, error)
	Search(ctx context.Context, roomID uuid.UUID, query string) ([]*domain.ChatMessage, error)
	Paginate(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*domain.ChatMessage, error)
	RemoveRoom(ctx context.Context, roomID uuid.UUID) error
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

// ProvisionRoom verifies the room's log anchor exists. The chat_rooms row
// is created together with the chat metadata, so this is a read; it exists
// to close the create-then-immediately-read race at the service boundary.
func (r *messageRepository) ProvisionRoom(ctx context.Context, roomID uuid.UUID) error {
	return r.roomExists(ctx, roomID)
}

// Append assigns the next per-room sequence id and server-side timestamp in
// a single statement. The UPDATE on chat_rooms takes the row lock, so two
// concurrent appends to the same room serialize and cannot produce
// duplicate or out-of-order sequence ids.
func (r *messageRepository) Append(ctx context.Context, roomID, senderID uuid.UUID, senderName, body string) (*domain.ChatMessage, error) {
	query := `
		WITH bumped AS (
			UPDATE chat_rooms
			SET last_seq = last_seq + 1, last_activity = now()
			WHERE id = $1
			RETURNING last_seq
		)
		INSERT INTO chat_messages (room_id, seq, sender_id, sender_name, body, created_at)
		SELECT $1, last_seq, $2, $3, $4, now() FROM bumped
		RETURNING seq, created_at
	`

	message := &domain.ChatMessage{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
	}

	err := r.db.QueryRow(ctx, query, roomID, senderID, senderName, body).
		Scan(&message.Seq, &message.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrRoomNotFound
		}
		r.log.Error("Failed to append message", "room_id", roomID, "error", err)
		return nil, err
	}

	return message, nil
}

func (r *messageRepository) Get(ctx context.Context, roomID uuid.UUID, seq int64) (*domain.ChatMessage, error) {
	query := `
		SELECT room_id, seq, sender_id, sender_name, body, created_at
		FROM chat_messages
		WHERE room_id = $1 AND seq = $2
	`

	message := &domain.ChatMessage{}
	err := r.db.QueryRow(ctx, query, roomID, seq).Scan(
		&message.RoomID, &message.Seq, &message.SenderID,
		&message.SenderName, &message.Body, &message.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		r.log.Error("Failed to get message", "room_id", roomID, "seq", seq, "error", err)
		return nil, err
	}

	return message, nil
}

func (r *messageRepository) ListAll(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	if err := r.roomExists(ctx, roomID); err != nil {
		return nil, err
	}

	query := `
		SELECT room_id, seq, sender_id, sender_name, body, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY seq
	`

	return r.queryMessages(ctx, query, roomID)
}

// ListSince returns messages strictly after the cursor. With an afterSeq
// cursor the comparison is on the (created_at, seq) pair, which resolves
// timestamp collisions; a timestamp-only cursor compares created_at alone.
func (r *messageRepository) ListSince(ctx context.Context, roomID uuid.UUID, since time.Time, afterSeq int64) ([]*domain.ChatMessage, error) {
	if err := r.roomExists(ctx, roomID); err != nil {
		return nil, err
	}

	if afterSeq > 0 {
		query := `
			SELECT room_id, seq, sender_id, sender_name, body, created_at
			FROM chat_messages
			WHERE room_id = $1 AND (created_at, seq) > ($2, $3)
			ORDER BY created_at, seq
		`
		return r.queryMessages(ctx, query, roomID, since, afterSeq)
	}

	query := `
		SELECT room_id, seq, sender_id, sender_name, body, created_at
		FROM chat_messages
		WHERE room_id = $1 AND created_at > $2
		ORDER BY created_at, seq
	`
	return r.queryMessages(ctx, query, roomID, since)
}

func (r *messageRepository) Search(ctx context.Context, roomID uuid.UUID, query string) ([]*domain.ChatMessage, error) {
	if err := r.roomExists(ctx, roomID); err != nil {
		return nil, err
	}

	sql := `
		SELECT room_id, seq, sender_id, sender_name, body, created_at
		FROM chat_messages
		WHERE room_id = $1 AND body ILIKE '%' || $2 || '%'
		ORDER BY seq
	`

	return r.queryMessages(ctx, sql, roomID, query)
}

func (r *messageRepository) Paginate(ctx context.Context, roomID uuid.UUID, page, pageSize int) ([]*domain.ChatMessage, error) {
	if err := r.roomExists(ctx, roomID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := `
		SELECT room_id, seq, sender_id, sender_name, body, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY seq
		LIMIT $2 OFFSET $3
	`

	return r.queryMessages(ctx, query, roomID, pageSize, (page-1)*pageSize)
}

// RemoveRoom drops the room's message segment. Removing a room that has no
// log is a no-op.
func (r *messageRepository) RemoveRoom(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE room_id = $1`, roomID)
	if err != nil {
		r.log.Error("Failed to remove room messages", "room_id", roomID, "error", err)
		return err
	}
	return nil
}

func (r *messageRepository) roomExists(ctx context.Context, roomID uuid.UUID) error {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM chat_rooms WHERE id = $1`, roomID).Scan(&one)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.ErrRoomNotFound
		}
		r.log.Error("Failed to check room existence", "room_id", roomID, "error", err)
		return err
	}
	return nil
}

func (r *messageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		message := &domain.ChatMessage{}
		err := rows.Scan(
			&message.RoomID, &message.Seq, &message.SenderID,
			&message.SenderName, &message.Body, &message.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
