package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/repository"
)

type roomFinder interface {
	FindForMember(ctx context.Context, filter repository.RoomFilter, userID int64) (*models.Room, error)
}

type roomQueryReader interface {
	GetByID(ctx context.Context, id int64) (*models.RoomQuery, error)
}

type propertyStatusReader interface {
	GetStatus(ctx context.Context, propertyID int64) (*models.PropertyStatus, error)
}

type reservationOverlapFinder interface {
	HasActiveOverlap(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error)
}

// RoomStatus is the lifecycle resolver's answer for one lookup: whether a
// room exists for the caller, and whether its chat session has lapsed.
type RoomStatus struct {
	Exists  bool
	Expired bool
	Room    *models.Room
	Query   *models.RoomQuery
}

// LifecycleService decides room existence and chat-session expiry from
// persisted rooms plus live booking facts. Both the REST initiate/update
// paths and the websocket join handshake go through it, so the expiry
// semantics cannot diverge between the two surfaces.
type LifecycleService struct {
	rooms        roomFinder
	queries      roomQueryReader
	properties   propertyStatusReader
	reservations reservationOverlapFinder
	now          func() time.Time
}

func NewLifecycleService(
	rooms roomFinder,
	queries roomQueryReader,
	properties propertyStatusReader,
	reservations reservationOverlapFinder,
) *LifecycleService {
	return &LifecycleService{
		rooms:        rooms,
		queries:      queries,
		properties:   properties,
		reservations: reservations,
		now:          time.Now,
	}
}

// RoomStatus resolves the candidate room for the filter. A room the caller is
// not a member of reports as non-existent rather than forbidden: the caller
// and that room are simply disjoint, and the caller may be about to open a
// fresh one.
func (s *LifecycleService) RoomStatus(
	ctx context.Context,
	filter repository.RoomFilter,
	userID int64,
) (*RoomStatus, error) {
	room, err := s.rooms.FindForMember(ctx, filter, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &RoomStatus{}, nil
		}
		return nil, err
	}

	status := &RoomStatus{Exists: true, Room: room}

	if room.RoomQueryID != nil {
		query, err := s.queries.GetByID(ctx, *room.RoomQueryID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		status.Query = query
	}

	expired, err := s.hasChatSessionExpired(ctx, room, status.Query)
	if err != nil {
		return nil, err
	}
	status.Expired = expired

	return status, nil
}

// hasChatSessionExpired applies the liveness rule. Support chats with the
// admin never lapse; a guest-host room lapses as soon as any booking fact
// invalidates the queried stay.
func (s *LifecycleService) hasChatSessionExpired(
	ctx context.Context,
	room *models.Room,
	query *models.RoomQuery,
) (bool, error) {
	if room.ConversationType != models.ConversationGuestHost || room.PropertyID == nil {
		return false, nil
	}

	property, err := s.properties.GetStatus(ctx, *room.PropertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	if property.Status != models.PropertyActive || !property.Bookable {
		return true, nil
	}

	if query == nil {
		return false, nil
	}

	today := utcMidnight(s.now())
	if utcMidnight(query.CheckIn).Before(today) || utcMidnight(query.CheckOut).Before(today) {
		return true, nil
	}

	overlaps, err := s.reservations.HasActiveOverlap(ctx, *room.PropertyID, query.CheckIn, query.CheckOut)
	if err != nil {
		return false, err
	}
	return overlaps, nil
}

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
