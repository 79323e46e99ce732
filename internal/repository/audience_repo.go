package repository

import (
	"context"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

type AudienceMember struct {
	UserID int64
	Role   string
}

type AudienceRepository struct {
	db DBTX
}

func NewAudienceRepository(db DBTX) *AudienceRepository {
	return &AudienceRepository{db: db}
}

// CreatePair inserts both audience rows for a new room. The initiator starts
// seen-now; the receiver starts with a null last-seen so the room is unread
// for them from the first message.
func (r *AudienceRepository) CreatePair(
	ctx context.Context,
	roomID int64,
	initiator AudienceMember,
	receiver AudienceMember,
) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_audiences (room_id, user_id, role, last_seen_at)
		VALUES ($1, $2, $3, NOW()), ($1, $4, $5, NULL)
	`, roomID, initiator.UserID, initiator.Role, receiver.UserID, receiver.Role)
	return err
}

func (r *AudienceRepository) UpdateLastSeen(ctx context.Context, roomID, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_audiences
		SET last_seen_at = NOW(), updated_at = NOW()
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID)
	return err
}

func (r *AudienceRepository) GetForRoom(
	ctx context.Context,
	roomID int64,
) ([]models.ChatAudience, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, user_id, role, last_seen_at, created_at, updated_at
		FROM chat_audiences
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	audiences := make([]models.ChatAudience, 0, 2)
	for rows.Next() {
		var audience models.ChatAudience
		if err := rows.Scan(
			&audience.ID,
			&audience.RoomID,
			&audience.UserID,
			&audience.Role,
			&audience.LastSeenAt,
			&audience.CreatedAt,
			&audience.UpdatedAt,
		); err != nil {
			return nil, err
		}
		audiences = append(audiences, audience)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return audiences, nil
}
