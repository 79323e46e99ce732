package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/services"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/ws"
)

type stubChatService struct {
	initiateResult      *services.ConversationDetail
	initiateErr         error
	updateResult        *services.ConversationDetail
	updateErr           error
	conversationsResult []models.RoomSummary
	conversationsErr    error
	messagesResult      []models.ChatMessage
	messagesTotal       int
	messagesErr         error
	messageResult       *models.ChatMessage
	messageErr          error
	lastActorID         int64
	lastRole            string
	lastRoomUID         string
	lastMessageID       int64
	lastInitiate        services.InitiateInput
	lastUpdate          services.UpdateMessageInput
	lastPage            int
	lastLimit           int
}

func (s *stubChatService) InitiateConversation(_ context.Context, actorID int64, actorRole string, input services.InitiateInput) (*services.ConversationDetail, error) {
	s.lastActorID = actorID
	s.lastRole = actorRole
	s.lastInitiate = input
	return s.initiateResult, s.initiateErr
}

func (s *stubChatService) UpdateConversation(_ context.Context, actorID int64, roomUniqueID string, input services.InitiateInput) (*services.ConversationDetail, error) {
	s.lastActorID = actorID
	s.lastRoomUID = roomUniqueID
	s.lastInitiate = input
	return s.updateResult, s.updateErr
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64) ([]models.RoomSummary, error) {
	s.lastActorID = actorID
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, roomUniqueID string, page int, limit int) ([]models.ChatMessage, int, error) {
	s.lastActorID = actorID
	s.lastRoomUID = roomUniqueID
	s.lastPage = page
	s.lastLimit = limit
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) UpdateMessage(_ context.Context, actorID int64, messageID int64, input services.UpdateMessageInput) (*models.ChatMessage, error) {
	s.lastActorID = actorID
	s.lastMessageID = messageID
	s.lastUpdate = input
	return s.messageResult, s.messageErr
}

type stubUserDirectory struct {
	user *models.User
	err  error
}

func (s *stubUserDirectory) GetByID(_ context.Context, _ int64) (*models.User, error) {
	return s.user, s.err
}

func newChatTestApp(service *stubChatService, role, userID string) (*fiber.App, *ChatHandler) {
	handler := NewChatHandler(service, &stubUserDirectory{}, ws.NewGateway(nil, nil, ws.NewRegistry()), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	return app, handler
}

func TestInitiateConversationReturnsCreated(t *testing.T) {
	service := &stubChatService{
		initiateResult: &services.ConversationDetail{
			Room: &models.Room{
				UniqueID:         "room-uid",
				ConversationType: models.ConversationGuestHost,
				MemberOneID:      42,
				MemberTwoID:      7,
			},
			Message: &models.ChatMessage{ID: 1, SenderID: 42, MessageType: models.MessagePlain, Message: "hello"},
		},
	}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Post("/api/v1/conversations", handler.InitiateConversation)

	body := `{"receiver_id":7,"receiver_role":"host","property_id":3,"message":"hello","check_in":"2026-04-01","check_out":"2026-04-04","adults":2,"currency":"usd"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastRole != models.RoleGuest {
		t.Fatalf("unexpected actor context: %d %q", service.lastActorID, service.lastRole)
	}
	if service.lastInitiate.ReceiverID != 7 || service.lastInitiate.PropertyID != 3 {
		t.Fatalf("unexpected forwarded input: %+v", service.lastInitiate)
	}
	if service.lastInitiate.Currency != "USD" {
		t.Fatalf("expected uppercased currency, got %q", service.lastInitiate.Currency)
	}
	if !service.lastInitiate.CheckIn.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected UTC check-in date, got %v", service.lastInitiate.CheckIn)
	}
}

func TestInitiateConversationRejectsInvalidBody(t *testing.T) {
	service := &stubChatService{}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Post("/api/v1/conversations", handler.InitiateConversation)

	// Missing message and an unknown receiver role both fail validation.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"receiver_role":"moderator"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestInitiateConversationMapsConflict(t *testing.T) {
	service := &stubChatService{initiateErr: services.ErrConflict}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Post("/api/v1/conversations", handler.InitiateConversation)

	body := `{"receiver_id":7,"receiver_role":"host","property_id":3,"message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestUpdateConversationMapsExpiredSession(t *testing.T) {
	service := &stubChatService{updateErr: services.ErrExpiredSession}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Put("/api/v1/conversations/:uid", handler.UpdateConversation)

	body := `{"message":"still interested","check_in":"2026-04-01","check_out":"2026-04-04"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/conversations/room-uid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410, got %d", resp.StatusCode)
	}
	if service.lastRoomUID != "room-uid" {
		t.Fatalf("expected room uid forwarded, got %q", service.lastRoomUID)
	}
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.RoomSummary{
			{
				Room: models.Room{
					UniqueID:         "room-uid",
					ConversationType: models.ConversationGuestHost,
					MemberOneID:      42,
					MemberTwoID:      7,
					LastActiveAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				CounterpartID:   7,
				CounterpartName: "Marta",
				HasUnread:       true,
			},
		},
	}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Get("/api/v1/conversations", handler.ListConversations)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor 42, got %d", service.lastActorID)
	}

	var body struct {
		Conversations []models.RoomSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || !body.Conversations[0].HasUnread || body.Conversations[0].CounterpartName != "Marta" {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
}

func TestGetMessagesForwardsPagination(t *testing.T) {
	service := &stubChatService{
		messagesResult: []models.ChatMessage{
			{ID: 5, SenderID: 7, MessageType: models.MessagePlain, Message: "Hi", CreatedAt: time.Now().UTC()},
		},
		messagesTotal: 12,
	}
	app, handler := newChatTestApp(service, models.RoleHost, "7")
	app.Get("/api/v1/conversations/:uid/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/room-uid/messages?page=2&limit=5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRoomUID != "room-uid" || service.lastPage != 2 || service.lastLimit != 5 {
		t.Fatalf("unexpected forwarded pagination: room=%q page=%d limit=%d", service.lastRoomUID, service.lastPage, service.lastLimit)
	}

	var body struct {
		Messages   []models.ChatMessage  `json:"messages"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Pagination.Total != 12 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected response body: %+v %+v", body.Messages, body.Pagination)
	}
}

func TestGetMessagesReturnsNotFound(t *testing.T) {
	service := &stubChatService{messagesErr: pgx.ErrNoRows}
	app, handler := newChatTestApp(service, models.RoleHost, "7")
	app.Get("/api/v1/conversations/:uid/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/unknown/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateMessageValidatesType(t *testing.T) {
	service := &stubChatService{
		messageResult: &models.ChatMessage{ID: 5, SenderID: 42, MessageType: models.MessageDeleted},
	}
	app, handler := newChatTestApp(service, models.RoleGuest, "42")
	app.Patch("/api/v1/messages/:id", handler.UpdateMessage)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/messages/5", strings.NewReader(`{"message_type":"deleted"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastMessageID != 5 || service.lastUpdate.MessageType != models.MessageDeleted {
		t.Fatalf("unexpected forwarded update: id=%d %+v", service.lastMessageID, service.lastUpdate)
	}

	// Attachments can only be deleted, never rewritten through this endpoint.
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/messages/5", strings.NewReader(`{"message_type":"attachment","message":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
