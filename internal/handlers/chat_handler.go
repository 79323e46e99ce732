package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/services"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/ws"
	"github.com/mukuljibh/airbnb-backend-sub001/pkg/utils"
)

type chatApplicationService interface {
	InitiateConversation(ctx context.Context, actorID int64, actorRole string, input services.InitiateInput) (*services.ConversationDetail, error)
	UpdateConversation(ctx context.Context, actorID int64, roomUniqueID string, input services.InitiateInput) (*services.ConversationDetail, error)
	ListConversations(ctx context.Context, actorID int64) ([]models.RoomSummary, error)
	ListMessages(ctx context.Context, actorID int64, roomUniqueID string, page int, limit int) ([]models.ChatMessage, int, error)
	UpdateMessage(ctx context.Context, actorID int64, messageID int64, input services.UpdateMessageInput) (*models.ChatMessage, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ChatHandler struct {
	service   chatApplicationService
	users     userDirectory
	gateway   *ws.Gateway
	validate  *validator.Validate
	jwtSecret string
}

func NewChatHandler(
	service chatApplicationService,
	users userDirectory,
	gateway *ws.Gateway,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		users:     users,
		gateway:   gateway,
		validate:  validator.New(),
		jwtSecret: jwtSecret,
	}
}

const dateLayout = "2006-01-02"

type conversationRequest struct {
	ReceiverID   int64  `json:"receiver_id"`
	ReceiverRole string `json:"receiver_role" validate:"required,oneof=guest host admin"`
	PropertyID   int64  `json:"property_id"`
	Message      string `json:"message" validate:"required"`
	CheckIn      string `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut     string `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	Adults       int    `json:"adults" validate:"gte=0"`
	Children     int    `json:"children" validate:"gte=0"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
}

type updateMessageRequest struct {
	MessageType string `json:"message_type" validate:"required,oneof=plain deleted"`
	Message     string `json:"message"`
}

func (h *ChatHandler) InitiateConversation(c *fiber.Ctx) error {
	actorID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req conversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	input, err := req.toInput()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid stay dates"})
	}

	detail, err := h.service.InitiateConversation(c.Context(), actorID, role, input)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conversationResponse(detail))
}

func (h *ChatHandler) UpdateConversation(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomUniqueID := strings.TrimSpace(c.Params("uid"))
	if roomUniqueID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room id"})
	}

	var req conversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	input, err := req.toInput()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid stay dates"})
	}

	detail, err := h.service.UpdateConversation(c.Context(), actorID, roomUniqueID, input)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(conversationResponse(detail))
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	roomUniqueID := strings.TrimSpace(c.Params("uid"))
	if roomUniqueID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid room id"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), actorID, roomUniqueID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) UpdateMessage(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || messageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	var req updateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.UpdateMessage(c.Context(), actorID, messageID, services.UpdateMessageInput{
		MessageType: req.MessageType,
		Message:     req.Message,
	})
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

// WebSocketAuth verifies the upgrade request's token before the connection is
// handed to the gateway.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userIDStr, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || !models.ValidRole(role) {
		_ = conn.Close()
		return
	}

	identity := ws.Identity{UserID: userID, Role: role}
	if user, err := h.users.GetByID(context.Background(), userID); err == nil {
		identity.Name = user.Name
	}

	h.gateway.HandleConnection(conn, identity)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func (r conversationRequest) toInput() (services.InitiateInput, error) {
	input := services.InitiateInput{
		ReceiverID:   r.ReceiverID,
		ReceiverRole: r.ReceiverRole,
		PropertyID:   r.PropertyID,
		Message:      r.Message,
		Adults:       r.Adults,
		Children:     r.Children,
		Currency:     strings.ToUpper(r.Currency),
	}

	if r.CheckIn != "" {
		checkIn, err := time.ParseInLocation(dateLayout, r.CheckIn, time.UTC)
		if err != nil {
			return input, err
		}
		input.CheckIn = checkIn
	}
	if r.CheckOut != "" {
		checkOut, err := time.ParseInLocation(dateLayout, r.CheckOut, time.UTC)
		if err != nil {
			return input, err
		}
		input.CheckOut = checkOut
	}

	return input, nil
}

func conversationResponse(detail *services.ConversationDetail) fiber.Map {
	return fiber.Map{
		"conversation": detail.Room,
		"query":        detail.Query,
		"message":      detail.Message,
		"reopened":     detail.Reopened,
	}
}

func actorFromLocals(c *fiber.Ctx) (int64, string, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, "", err
	}

	role, ok := c.Locals("role").(string)
	if !ok || !models.ValidRole(role) {
		return 0, "", strconv.ErrSyntax
	}

	return userID, role, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conversation already exists"})
	case errors.Is(err, services.ErrExpiredSession):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Chat session has expired"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
