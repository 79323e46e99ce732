package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

// RoomFilter narrows the room lookup. UniqueID wins when set; otherwise
// guest-host rooms are addressed by (PropertyID, ConversationType) and the
// remaining types by their member pair.
type RoomFilter struct {
	UniqueID         string
	PropertyID       int64
	ConversationType string
	MemberA          int64
	MemberB          int64
}

type CreateRoomInput struct {
	UniqueID         string
	ConversationType string
	MemberOneID      int64
	MemberTwoID      int64
	PropertyID       *int64
}

type RoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `
	id, unique_id, conversation_type, member_one_id, member_two_id,
	property_id, room_query_id, last_active_at, reopened_at, created_at, updated_at
`

func scanRoom(row interface{ Scan(...any) error }) (*models.Room, error) {
	var room models.Room
	err := row.Scan(
		&room.ID,
		&room.UniqueID,
		&room.ConversationType,
		&room.MemberOneID,
		&room.MemberTwoID,
		&room.PropertyID,
		&room.RoomQueryID,
		&room.LastActiveAt,
		&room.ReopenedAt,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepository) Create(ctx context.Context, input CreateRoomInput) (*models.Room, error) {
	query := `
		INSERT INTO rooms (unique_id, conversation_type, member_one_id, member_two_id, property_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + roomColumns

	return scanRoom(r.db.QueryRow(
		ctx,
		query,
		input.UniqueID,
		input.ConversationType,
		input.MemberOneID,
		input.MemberTwoID,
		input.PropertyID,
	))
}

func (r *RoomRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE unique_id = $1`
	return scanRoom(r.db.QueryRow(ctx, query, uniqueID))
}

// FindForMember resolves the candidate room for the filter and verifies the
// caller holds an audience row in it. A room whose audience excludes the
// caller is reported as pgx.ErrNoRows, not as an authorization failure: the
// caller may legitimately be initiating a fresh room.
func (r *RoomRepository) FindForMember(
	ctx context.Context,
	filter RoomFilter,
	userID int64,
) (*models.Room, error) {
	base := `
		SELECT ` + roomColumns + `
		FROM rooms r
		WHERE EXISTS (
			SELECT 1 FROM chat_audiences a
			WHERE a.room_id = r.id AND a.user_id = $1
		)
	`

	switch {
	case filter.UniqueID != "":
		return scanRoom(r.db.QueryRow(ctx, base+` AND r.unique_id = $2`, userID, filter.UniqueID))
	case filter.ConversationType == models.ConversationGuestHost:
		return scanRoom(r.db.QueryRow(
			ctx,
			base+` AND r.property_id = $2 AND r.conversation_type = $3`,
			userID, filter.PropertyID, filter.ConversationType,
		))
	default:
		return scanRoom(r.db.QueryRow(
			ctx,
			base+` AND r.conversation_type = $2
			  AND ((r.member_one_id = $3 AND r.member_two_id = $4)
			    OR (r.member_one_id = $4 AND r.member_two_id = $3))`,
			userID, filter.ConversationType, filter.MemberA, filter.MemberB,
		))
	}
}

func (r *RoomRepository) SetCurrentQuery(ctx context.Context, roomID, queryID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rooms
		SET room_query_id = $2, updated_at = NOW()
		WHERE id = $1
	`, roomID, queryID)
	return err
}

func (r *RoomRepository) TouchLastActive(ctx context.Context, roomID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rooms
		SET last_active_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, roomID)
	return err
}

// Reopen stamps an expired room as reactivated.
func (r *RoomRepository) Reopen(ctx context.Context, roomID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE rooms
		SET reopened_at = NOW(), last_active_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, roomID)
	return err
}

// ListForMember returns the viewer's conversations sorted by last activity,
// each carrying the latest message, the current query snapshot, the
// counterpart's display name and the viewer's own last-seen mark.
func (r *RoomRepository) ListForMember(
	ctx context.Context,
	userID int64,
) ([]models.RoomSummary, error) {
	query := `
		SELECT ` + roomColumns + `,
			cp.id, cp.name,
			own.last_seen_at,
			lm.id, lm.sender_id, lm.message_type, lm.message, lm.url, lm.document_type, lm.created_at,
			rq.id, rq.check_in, rq.check_out, rq.adults, rq.children, rq.currency
		FROM rooms r
		JOIN chat_audiences own ON own.room_id = r.id AND own.user_id = $1
		JOIN users cp ON cp.id = CASE WHEN r.member_one_id = $1 THEN r.member_two_id ELSE r.member_one_id END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, message_type, message, url, document_type, created_at
			FROM chat_messages
			WHERE room_id = r.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN room_queries rq ON rq.id = r.room_query_id
		ORDER BY r.last_active_at DESC, r.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.RoomSummary, 0)
	for rows.Next() {
		var summary models.RoomSummary
		var lastSeenAt sql.NullTime
		var msgID, msgSenderID sql.NullInt64
		var msgType, msgText sql.NullString
		var msgURL, msgDocType sql.NullString
		var msgCreatedAt sql.NullTime
		var rqID sql.NullInt64
		var rqCheckIn, rqCheckOut sql.NullTime
		var rqAdults, rqChildren sql.NullInt64
		var rqCurrency sql.NullString

		if err := rows.Scan(
			&summary.ID,
			&summary.UniqueID,
			&summary.ConversationType,
			&summary.MemberOneID,
			&summary.MemberTwoID,
			&summary.PropertyID,
			&summary.RoomQueryID,
			&summary.LastActiveAt,
			&summary.ReopenedAt,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.CounterpartID,
			&summary.CounterpartName,
			&lastSeenAt,
			&msgID,
			&msgSenderID,
			&msgType,
			&msgText,
			&msgURL,
			&msgDocType,
			&msgCreatedAt,
			&rqID,
			&rqCheckIn,
			&rqCheckOut,
			&rqAdults,
			&rqChildren,
			&rqCurrency,
		); err != nil {
			return nil, err
		}

		var lastSeen *time.Time
		if lastSeenAt.Valid {
			t := lastSeenAt.Time
			lastSeen = &t
		}
		summary.HasUnread = models.HasUnread(summary.LastActiveAt, lastSeen)

		if msgID.Valid {
			message := &models.ChatMessage{
				ID:          msgID.Int64,
				RoomID:      summary.Room.ID,
				SenderID:    msgSenderID.Int64,
				MessageType: msgType.String,
				Message:     msgText.String,
				CreatedAt:   msgCreatedAt.Time,
			}
			if msgURL.Valid {
				message.URL = &msgURL.String
			}
			if msgDocType.Valid {
				message.DocumentType = &msgDocType.String
			}
			summary.LastMessage = message
		}

		if rqID.Valid {
			summary.Query = &models.RoomQuery{
				ID:       rqID.Int64,
				RoomID:   summary.Room.ID,
				CheckIn:  rqCheckIn.Time,
				CheckOut: rqCheckOut.Time,
				Adults:   int(rqAdults.Int64),
				Children: int(rqChildren.Int64),
				Currency: rqCurrency.String,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
