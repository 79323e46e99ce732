package repository

import (
	"context"
	"time"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
)

// PropertyRepository exposes the property facts the lifecycle resolver needs.
// The wider property CRUD lives outside this subsystem.
type PropertyRepository struct {
	db DBTX
}

func NewPropertyRepository(db DBTX) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) GetStatus(
	ctx context.Context,
	propertyID int64,
) (*models.PropertyStatus, error) {
	query := `SELECT id, status, is_bookable FROM properties WHERE id = $1`

	var status models.PropertyStatus
	err := r.db.QueryRow(ctx, query, propertyID).Scan(
		&status.PropertyID,
		&status.Status,
		&status.Bookable,
	)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

type ReservationRepository struct {
	db DBTX
}

func NewReservationRepository(db DBTX) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// HasActiveOverlap reports whether a non-cancelled reservation overlaps the
// queried stay on the property. Check-out day is exclusive, matching the
// booking engine's half-open stay ranges.
func (r *ReservationRepository) HasActiveOverlap(
	ctx context.Context,
	propertyID int64,
	checkIn time.Time,
	checkOut time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM reservations
			WHERE property_id = $1
			  AND status <> 'cancelled'
			  AND check_in < $3
			  AND check_out > $2
		)
	`

	var overlaps bool
	err := r.db.QueryRow(ctx, query, propertyID, checkIn, checkOut).Scan(&overlaps)
	if err != nil {
		return false, err
	}
	return overlaps, nil
}
