package repository

import (
	"context"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

type CreateMessageInput struct {
	RoomID       int64
	SenderID     int64
	RoomQueryID  *int64
	MessageType  string
	Message      string
	URL          *string
	DocumentType *string
}

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, room_id, sender_id, room_query_id, message_type, message, url, document_type,
	created_at, updated_at
`

func scanMessage(row interface{ Scan(...any) error }) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := row.Scan(
		&message.ID,
		&message.RoomID,
		&message.SenderID,
		&message.RoomQueryID,
		&message.MessageType,
		&message.Message,
		&message.URL,
		&message.DocumentType,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) Create(
	ctx context.Context,
	input CreateMessageInput,
) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (room_id, sender_id, room_query_id, message_type, message, url, document_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageColumns

	return scanMessage(r.db.QueryRow(
		ctx,
		query,
		input.RoomID,
		input.SenderID,
		input.RoomQueryID,
		input.MessageType,
		input.Message,
		input.URL,
		input.DocumentType,
	))
}

// ListByRoom pages messages newest-first; callers reverse the page for display.
func (r *MessageRepository) ListByRoom(
	ctx context.Context,
	roomID int64,
	limit int,
	offset int,
) ([]models.ChatMessage, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_messages WHERE room_id = $1
	`, roomID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// UpdateContentBySender rewrites a message in place. Only the original sender
// matches the WHERE clause, so a counterparty edit comes back as ErrNoRows.
func (r *MessageRepository) UpdateContentBySender(
	ctx context.Context,
	messageID int64,
	senderID int64,
	messageType string,
	content string,
) (*models.ChatMessage, error) {
	query := `
		UPDATE chat_messages
		SET message_type = $3,
		    message = $4,
		    url = CASE WHEN $3 = 'deleted' THEN NULL ELSE url END,
		    document_type = CASE WHEN $3 = 'deleted' THEN NULL ELSE document_type END,
		    updated_at = NOW()
		WHERE id = $1 AND sender_id = $2
		RETURNING ` + messageColumns

	return scanMessage(r.db.QueryRow(ctx, query, messageID, senderID, messageType, content))
}
