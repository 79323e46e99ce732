package repository

import (
	"context"
	"time"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

type CreateRoomQueryInput struct {
	RoomID   int64
	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
	Children int
	Currency string
}

type RoomQueryRepository struct {
	db DBTX
}

func NewRoomQueryRepository(db DBTX) *RoomQueryRepository {
	return &RoomQueryRepository{db: db}
}

func (r *RoomQueryRepository) Create(
	ctx context.Context,
	input CreateRoomQueryInput,
) (*models.RoomQuery, error) {
	query := `
		INSERT INTO room_queries (room_id, check_in, check_out, adults, children, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, room_id, check_in, check_out, adults, children, currency, created_at
	`

	var rq models.RoomQuery
	err := r.db.QueryRow(
		ctx,
		query,
		input.RoomID,
		input.CheckIn,
		input.CheckOut,
		input.Adults,
		input.Children,
		input.Currency,
	).Scan(
		&rq.ID,
		&rq.RoomID,
		&rq.CheckIn,
		&rq.CheckOut,
		&rq.Adults,
		&rq.Children,
		&rq.Currency,
		&rq.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rq, nil
}

func (r *RoomQueryRepository) GetByID(ctx context.Context, id int64) (*models.RoomQuery, error) {
	query := `
		SELECT id, room_id, check_in, check_out, adults, children, currency, created_at
		FROM room_queries
		WHERE id = $1
	`

	var rq models.RoomQuery
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rq.ID,
		&rq.RoomID,
		&rq.CheckIn,
		&rq.CheckOut,
		&rq.Adults,
		&rq.Children,
		&rq.Currency,
		&rq.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rq, nil
}
