package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/config"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/handlers"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/middleware"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/repository"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/services"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/ws"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	roomQueryRepo := repository.NewRoomQueryRepository(db)
	audienceRepo := repository.NewAudienceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	var uploads services.UploadConfirmer = services.NoopUploadConfirmer{}
	if cfg.StorageConfigured() {
		uploads = services.NewSupabaseUploadService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	lifecycleService := services.NewLifecycleService(roomRepo, roomQueryRepo, propertyRepo, reservationRepo)
	chatService := services.NewChatService(
		db,
		roomRepo,
		roomQueryRepo,
		audienceRepo,
		messageRepo,
		userRepo,
		lifecycleService,
		uploads,
	)

	registry := ws.NewRegistry()
	gateway := ws.NewGateway(chatService, lifecycleService, registry)
	chatHandler := handlers.NewChatHandler(chatService, userRepo, gateway, cfg.JWTSecret)

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.InitiateConversation)
	conversations.Put("/:uid", chatHandler.UpdateConversation)
	conversations.Get("/:uid/messages", chatHandler.GetMessages)

	messages := authProtected.Group("/messages")
	messages.Patch("/:id", chatHandler.UpdateMessage)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
