package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/repository"
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetAdmin(ctx context.Context) (*models.User, error)
}

type roomStatusResolver interface {
	RoomStatus(ctx context.Context, filter repository.RoomFilter, userID int64) (*RoomStatus, error)
}

// UploadConfirmer marks an uploaded object as claimed so the orphaned-upload
// sweeper will not reclaim it once a message references it.
type UploadConfirmer interface {
	ConfirmClaim(ctx context.Context, fileURL string) error
}

type ChatService struct {
	db           *pgxpool.Pool
	roomRepo     *repository.RoomRepository
	queryRepo    *repository.RoomQueryRepository
	audienceRepo *repository.AudienceRepository
	messageRepo  *repository.MessageRepository
	userRepo     userReader
	lifecycle    roomStatusResolver
	uploads      UploadConfirmer
}

func NewChatService(
	db *pgxpool.Pool,
	roomRepo *repository.RoomRepository,
	queryRepo *repository.RoomQueryRepository,
	audienceRepo *repository.AudienceRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	lifecycle roomStatusResolver,
	uploads UploadConfirmer,
) *ChatService {
	return &ChatService{
		db:           db,
		roomRepo:     roomRepo,
		queryRepo:    queryRepo,
		audienceRepo: audienceRepo,
		messageRepo:  messageRepo,
		userRepo:     userRepo,
		lifecycle:    lifecycle,
		uploads:      uploads,
	}
}

type InitiateInput struct {
	ReceiverID   int64
	ReceiverRole string
	PropertyID   int64
	Message      string
	CheckIn      time.Time
	CheckOut     time.Time
	Adults       int
	Children     int
	Currency     string
}

type ConversationDetail struct {
	Room     *models.Room
	Query    *models.RoomQuery
	Message  *models.ChatMessage
	Reopened bool
}

type MessageInput struct {
	MessageType  string
	Message      string
	URL          string
	DocumentType string
}

type ChatDelivery struct {
	Room          *models.Room
	Message       *models.ChatMessage
	CounterpartID int64
}

type UpdateMessageInput struct {
	MessageType string
	Message     string
}

// InitiateConversation opens (or re-opens) the two-party room for the actor
// and receiver. Room, query snapshot, both audience rows and the first
// message are written in one transaction; an advisory lock on the property
// (or the member pair) keeps concurrent initiations idempotent.
func (s *ChatService) InitiateConversation(
	ctx context.Context,
	actorID int64,
	actorRole string,
	input InitiateInput,
) (*ConversationDetail, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrInvalidInput
	}

	if err := AuthorizeInitiation(actorRole, input.ReceiverRole); err != nil {
		return nil, err
	}
	conversationType, err := ResolveConversationType(actorRole, input.ReceiverRole)
	if err != nil {
		return nil, err
	}

	receiver, err := s.resolveReceiver(ctx, input)
	if err != nil {
		return nil, err
	}
	if receiver.ID == actorID || receiver.Role != input.ReceiverRole {
		return nil, ErrInvalidInput
	}

	guestHost := conversationType == models.ConversationGuestHost
	if guestHost {
		if input.PropertyID <= 0 || input.CheckIn.IsZero() || input.CheckOut.IsZero() {
			return nil, ErrInvalidInput
		}
		if !input.CheckOut.After(input.CheckIn) {
			return nil, ErrInvalidInput
		}
	}

	filter := roomFilterFor(conversationType, input.PropertyID, actorID, receiver.ID)

	status, err := s.lifecycle.RoomStatus(ctx, filter, actorID)
	if err != nil {
		return nil, err
	}
	if status.Exists && !status.Expired {
		return nil, ErrConflict
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	lockKey := input.PropertyID
	if !guestHost {
		lockKey = receiver.ID
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey); err != nil {
		return nil, err
	}

	txRoomRepo := repository.NewRoomRepository(tx)
	txQueryRepo := repository.NewRoomQueryRepository(tx)
	txAudienceRepo := repository.NewAudienceRepository(tx)
	txMessageRepo := repository.NewMessageRepository(tx)

	// Re-probe under the lock: a concurrent initiation may have won the race
	// between the lifecycle check and the lock acquisition.
	room, err := txRoomRepo.FindForMember(ctx, filter, actorID)
	switch {
	case err == nil && !status.Exists:
		return nil, ErrConflict
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	detail := &ConversationDetail{}

	if room != nil {
		detail.Reopened = true
		if err := txRoomRepo.Reopen(ctx, room.ID); err != nil {
			return nil, err
		}
		if err := txAudienceRepo.UpdateLastSeen(ctx, room.ID, actorID); err != nil {
			return nil, err
		}
	} else {
		memberOne, memberTwo := orderMembers(actorID, actorRole, receiver.ID, receiver.Role)
		createInput := repository.CreateRoomInput{
			UniqueID:         uuid.NewString(),
			ConversationType: conversationType,
			MemberOneID:      memberOne,
			MemberTwoID:      memberTwo,
		}
		if guestHost {
			propertyID := input.PropertyID
			createInput.PropertyID = &propertyID
		}

		room, err = txRoomRepo.Create(ctx, createInput)
		if err != nil {
			return nil, err
		}

		err = txAudienceRepo.CreatePair(
			ctx,
			room.ID,
			repository.AudienceMember{UserID: actorID, Role: actorRole},
			repository.AudienceMember{UserID: receiver.ID, Role: receiver.Role},
		)
		if err != nil {
			return nil, err
		}
	}

	if guestHost {
		query, err := txQueryRepo.Create(ctx, repository.CreateRoomQueryInput{
			RoomID:   room.ID,
			CheckIn:  input.CheckIn,
			CheckOut: input.CheckOut,
			Adults:   input.Adults,
			Children: input.Children,
			Currency: input.Currency,
		})
		if err != nil {
			return nil, err
		}
		if err := txRoomRepo.SetCurrentQuery(ctx, room.ID, query.ID); err != nil {
			return nil, err
		}
		queryID := query.ID
		room.RoomQueryID = &queryID
		detail.Query = query
	}

	first, err := txMessageRepo.Create(ctx, repository.CreateMessageInput{
		RoomID:      room.ID,
		SenderID:    actorID,
		RoomQueryID: room.RoomQueryID,
		MessageType: models.MessagePlain,
		Message:     message,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	detail.Room = room
	detail.Message = first
	return detail, nil
}

// UpdateConversation refreshes a room addressed by its external id with a new
// query snapshot and message, re-opening it if the chat session had lapsed.
func (s *ChatService) UpdateConversation(
	ctx context.Context,
	actorID int64,
	roomUniqueID string,
	input InitiateInput,
) (*ConversationDetail, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" || roomUniqueID == "" {
		return nil, ErrInvalidInput
	}

	status, err := s.lifecycle.RoomStatus(ctx, repository.RoomFilter{UniqueID: roomUniqueID}, actorID)
	if err != nil {
		return nil, err
	}
	if !status.Exists {
		return nil, ErrNotFound
	}
	room := status.Room

	guestHost := room.ConversationType == models.ConversationGuestHost
	if guestHost {
		if input.CheckIn.IsZero() || input.CheckOut.IsZero() || !input.CheckOut.After(input.CheckIn) {
			return nil, ErrInvalidInput
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRoomRepo := repository.NewRoomRepository(tx)
	txQueryRepo := repository.NewRoomQueryRepository(tx)
	txAudienceRepo := repository.NewAudienceRepository(tx)
	txMessageRepo := repository.NewMessageRepository(tx)

	if status.Expired {
		if err := txRoomRepo.Reopen(ctx, room.ID); err != nil {
			return nil, err
		}
	} else if err := txRoomRepo.TouchLastActive(ctx, room.ID); err != nil {
		return nil, err
	}

	detail := &ConversationDetail{Reopened: status.Expired}

	if guestHost {
		query, err := txQueryRepo.Create(ctx, repository.CreateRoomQueryInput{
			RoomID:   room.ID,
			CheckIn:  input.CheckIn,
			CheckOut: input.CheckOut,
			Adults:   input.Adults,
			Children: input.Children,
			Currency: input.Currency,
		})
		if err != nil {
			return nil, err
		}
		if err := txRoomRepo.SetCurrentQuery(ctx, room.ID, query.ID); err != nil {
			return nil, err
		}
		queryID := query.ID
		room.RoomQueryID = &queryID
		detail.Query = query
	}

	sent, err := txMessageRepo.Create(ctx, repository.CreateMessageInput{
		RoomID:      room.ID,
		SenderID:    actorID,
		RoomQueryID: room.RoomQueryID,
		MessageType: models.MessagePlain,
		Message:     message,
	})
	if err != nil {
		return nil, err
	}

	if err := txAudienceRepo.UpdateLastSeen(ctx, room.ID, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	detail.Room = room
	detail.Message = sent
	return detail, nil
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) ([]models.RoomSummary, error) {
	return s.roomRepo.ListForMember(ctx, actorID)
}

// ListMessages returns one page of room history, newest page first but in
// chronological order within the page for display.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	roomUniqueID string,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if roomUniqueID == "" || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	room, err := s.roomRepo.FindForMember(ctx, repository.RoomFilter{UniqueID: roomUniqueID}, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	messages, total, err := s.messageRepo.ListByRoom(ctx, room.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

// SendMessage validates and persists one message against the room the caller
// is bound to. Delivery fan-out is the transport layer's concern; this only
// guarantees the persistence side of the exchange.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	roomUniqueID string,
	input MessageInput,
) (*ChatDelivery, error) {
	input.MessageType = strings.TrimSpace(input.MessageType)
	if input.MessageType == "" {
		input.MessageType = models.MessagePlain
	}
	input.Message = strings.TrimSpace(input.Message)

	switch input.MessageType {
	case models.MessagePlain:
		if input.Message == "" || input.URL != "" {
			return nil, ErrInvalidInput
		}
	case models.MessageAttachment:
		if input.URL == "" || input.DocumentType == "" {
			return nil, ErrInvalidInput
		}
	default:
		return nil, ErrInvalidInput
	}

	if input.MessageType == models.MessageAttachment {
		if err := s.uploads.ConfirmClaim(ctx, input.URL); err != nil {
			return nil, err
		}
	}

	room, err := s.roomRepo.GetByUniqueID(ctx, roomUniqueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !room.HasMember(actorID) {
		return nil, ErrForbidden
	}

	createInput := repository.CreateMessageInput{
		RoomID:      room.ID,
		SenderID:    actorID,
		RoomQueryID: room.RoomQueryID,
		MessageType: input.MessageType,
		Message:     input.Message,
	}
	if input.MessageType == models.MessageAttachment {
		createInput.URL = &input.URL
		createInput.DocumentType = &input.DocumentType
	}

	message, err := s.messageRepo.Create(ctx, createInput)
	if err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Room:          room,
		Message:       message,
		CounterpartID: room.Counterpart(actorID),
	}, nil
}

// TouchActivity bumps the room's last-active mark and the sender's own
// last-seen. Runs after the send was already acknowledged, so callers treat
// failures as log-only.
func (s *ChatService) TouchActivity(ctx context.Context, roomID, userID int64) error {
	return errors.Join(
		s.roomRepo.TouchLastActive(ctx, roomID),
		s.audienceRepo.UpdateLastSeen(ctx, roomID, userID),
	)
}

func (s *ChatService) MarkRead(ctx context.Context, roomID, userID int64) error {
	return s.audienceRepo.UpdateLastSeen(ctx, roomID, userID)
}

// UpdateMessage edits or deletes a message in place, keyed on the requested
// message type. Delete keeps the row and blanks the content so history
// ordering and pagination stay stable.
func (s *ChatService) UpdateMessage(
	ctx context.Context,
	actorID int64,
	messageID int64,
	input UpdateMessageInput,
) (*models.ChatMessage, error) {
	var content string
	switch input.MessageType {
	case models.MessageDeleted:
		content = ""
	case models.MessagePlain:
		content = strings.TrimSpace(input.Message)
		if content == "" {
			return nil, ErrInvalidInput
		}
	default:
		return nil, ErrInvalidInput
	}

	message, err := s.messageRepo.UpdateContentBySender(ctx, messageID, actorID, input.MessageType, content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return message, nil
}

func (s *ChatService) resolveReceiver(ctx context.Context, input InitiateInput) (*models.User, error) {
	if input.ReceiverRole == models.RoleAdmin {
		admin, err := s.userRepo.GetAdmin(ctx)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return admin, nil
	}

	if input.ReceiverID <= 0 {
		return nil, ErrInvalidInput
	}
	receiver, err := s.userRepo.GetByID(ctx, input.ReceiverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return receiver, nil
}

func roomFilterFor(conversationType string, propertyID, memberA, memberB int64) repository.RoomFilter {
	if conversationType == models.ConversationGuestHost {
		return repository.RoomFilter{
			PropertyID:       propertyID,
			ConversationType: conversationType,
		}
	}
	return repository.RoomFilter{
		ConversationType: conversationType,
		MemberA:          memberA,
		MemberB:          memberB,
	}
}

// orderMembers puts the lower-priority role first so member columns line up
// with the canonical conversation type.
func orderMembers(aID int64, aRole string, bID int64, bRole string) (int64, int64) {
	if rolePriority[aRole] <= rolePriority[bRole] {
		return aID, bID
	}
	return bID, aID
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
