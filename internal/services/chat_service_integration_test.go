package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/models"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestInitiateConversationPersistsFullRecordSet(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	guestID := createChatAccount(t, ctx, pool, models.RoleGuest)
	hostID := createChatAccount(t, ctx, pool, models.RoleHost)
	propertyID := createChatProperty(t, ctx, pool, hostID)
	t.Cleanup(func() { cleanupChatFixtures(t, ctx, pool, guestID, hostID) })

	detail, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, InitiateInput{
		ReceiverID:   hostID,
		ReceiverRole: models.RoleHost,
		PropertyID:   propertyID,
		Message:      "is the loft available?",
		CheckIn:      time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:     time.Date(2030, 6, 4, 0, 0, 0, 0, time.UTC),
		Adults:       2,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("InitiateConversation: %v", err)
	}

	if detail.Room.ConversationType != models.ConversationGuestHost || detail.Room.UniqueID == "" {
		t.Fatalf("unexpected room: %+v", detail.Room)
	}
	if detail.Query == nil || !detail.Query.CheckIn.UTC().Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected query snapshot: %+v", detail.Query)
	}
	if detail.Message == nil || detail.Message.Message != "is the loft available?" {
		t.Fatalf("unexpected first message: %+v", detail.Message)
	}
	if detail.Reopened {
		t.Fatal("fresh room must not report reopened")
	}

	var audiences, messages int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM chat_audiences WHERE room_id = $1", detail.Room.ID).Scan(&audiences); err != nil {
		t.Fatalf("count audiences: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM chat_messages WHERE room_id = $1", detail.Room.ID).Scan(&messages); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if audiences != 2 || messages != 1 {
		t.Fatalf("expected 2 audiences and 1 message, got %d and %d", audiences, messages)
	}

	var currentQueryID *int64
	if err := pool.QueryRow(ctx, "SELECT room_query_id FROM rooms WHERE id = $1", detail.Room.ID).Scan(&currentQueryID); err != nil {
		t.Fatalf("read current query: %v", err)
	}
	if currentQueryID == nil || *currentQueryID != detail.Query.ID {
		t.Fatalf("expected room to point at query %d, got %v", detail.Query.ID, currentQueryID)
	}
}

func TestInitiateConversationRejectsDuplicateLiveRoom(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	guestID := createChatAccount(t, ctx, pool, models.RoleGuest)
	hostID := createChatAccount(t, ctx, pool, models.RoleHost)
	propertyID := createChatProperty(t, ctx, pool, hostID)
	t.Cleanup(func() { cleanupChatFixtures(t, ctx, pool, guestID, hostID) })

	input := InitiateInput{
		ReceiverID:   hostID,
		ReceiverRole: models.RoleHost,
		PropertyID:   propertyID,
		Message:      "first attempt",
		CheckIn:      time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:     time.Date(2030, 7, 3, 0, 0, 0, 0, time.UTC),
		Currency:     "USD",
	}
	if _, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, input); err != nil {
		t.Fatalf("first InitiateConversation: %v", err)
	}

	input.Message = "second attempt"
	if _, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, input); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInitiateConversationReopensExpiredRoom(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	guestID := createChatAccount(t, ctx, pool, models.RoleGuest)
	hostID := createChatAccount(t, ctx, pool, models.RoleHost)
	propertyID := createChatProperty(t, ctx, pool, hostID)
	t.Cleanup(func() { cleanupChatFixtures(t, ctx, pool, guestID, hostID) })

	input := InitiateInput{
		ReceiverID:   hostID,
		ReceiverRole: models.RoleHost,
		PropertyID:   propertyID,
		Message:      "initial enquiry",
		CheckIn:      time.Date(2030, 8, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:     time.Date(2030, 8, 5, 0, 0, 0, 0, time.UTC),
		Currency:     "USD",
	}
	first, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, input)
	if err != nil {
		t.Fatalf("first InitiateConversation: %v", err)
	}

	// A no-longer-bookable property lapses the chat session.
	if _, err := pool.Exec(ctx, "UPDATE properties SET is_bookable = FALSE WHERE id = $1", propertyID); err != nil {
		t.Fatalf("expire property: %v", err)
	}

	input.Message = "back again"
	second, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, input)
	if err != nil {
		t.Fatalf("re-initiation: %v", err)
	}
	if !second.Reopened {
		t.Fatal("expected the expired room to be reopened")
	}
	if second.Room.UniqueID != first.Room.UniqueID {
		t.Fatalf("expected the same room reused, got %q vs %q", second.Room.UniqueID, first.Room.UniqueID)
	}

	var rooms int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM rooms
		WHERE property_id = $1 AND conversation_type = $2
	`, propertyID, models.ConversationGuestHost).Scan(&rooms); err != nil {
		t.Fatalf("count rooms: %v", err)
	}
	if rooms != 1 {
		t.Fatalf("expected a single room per property pair, got %d", rooms)
	}
}

func TestSendAndListMessagesKeepChronologicalPages(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	guestID := createChatAccount(t, ctx, pool, models.RoleGuest)
	hostID := createChatAccount(t, ctx, pool, models.RoleHost)
	strangerID := createChatAccount(t, ctx, pool, models.RoleGuest)
	propertyID := createChatProperty(t, ctx, pool, hostID)
	t.Cleanup(func() { cleanupChatFixtures(t, ctx, pool, guestID, hostID, strangerID) })

	detail, err := service.InitiateConversation(ctx, guestID, models.RoleGuest, InitiateInput{
		ReceiverID:   hostID,
		ReceiverRole: models.RoleHost,
		PropertyID:   propertyID,
		Message:      "hello host",
		CheckIn:      time.Date(2030, 9, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:     time.Date(2030, 9, 3, 0, 0, 0, 0, time.UTC),
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("InitiateConversation: %v", err)
	}

	delivery, err := service.SendMessage(ctx, hostID, detail.Room.UniqueID, MessageInput{
		MessageType: models.MessagePlain,
		Message:     "hello guest",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if delivery.CounterpartID != guestID {
		t.Fatalf("expected counterpart %d, got %d", guestID, delivery.CounterpartID)
	}

	messages, total, err := service.ListMessages(ctx, guestID, detail.Room.UniqueID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 2 || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got total=%d len=%d", total, len(messages))
	}
	if messages[0].Message != "hello host" || messages[1].Message != "hello guest" {
		t.Fatalf("expected chronological page, got %q then %q", messages[0].Message, messages[1].Message)
	}

	if _, _, err := service.ListMessages(ctx, strangerID, detail.Room.UniqueID, 1, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a non-member, got %v", err)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationChatService(pool *pgxpool.Pool) *ChatService {
	roomRepo := repository.NewRoomRepository(pool)
	queryRepo := repository.NewRoomQueryRepository(pool)
	lifecycle := NewLifecycleService(
		roomRepo,
		queryRepo,
		repository.NewPropertyRepository(pool),
		repository.NewReservationRepository(pool),
	)
	return NewChatService(
		pool,
		roomRepo,
		queryRepo,
		repository.NewAudienceRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewUserRepository(pool),
		lifecycle,
		NoopUploadConfirmer{},
	)
}

func createChatAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, 'test-hash', $2, $3)
		RETURNING id
	`, fmt.Sprintf("chat-test-%s-%d@example.com", role, time.Now().UnixNano()), "Chat Tester", role).Scan(&id)
	if err != nil {
		t.Fatalf("create %s account: %v", role, err)
	}
	return id
}

func createChatProperty(t *testing.T, ctx context.Context, pool *pgxpool.Pool, hostID int64) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO properties (host_id, title, status, is_bookable)
		VALUES ($1, 'Test Loft', 'active', TRUE)
		RETURNING id
	`, hostID).Scan(&id)
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	return id
}

func cleanupChatFixtures(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...int64) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	if _, err := pool.Exec(ctx, `
		UPDATE rooms SET room_query_id = NULL
		WHERE member_one_id = ANY($1) OR member_two_id = ANY($1)
	`, userIDs); err != nil {
		t.Fatalf("cleanup room query refs: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		DELETE FROM rooms WHERE member_one_id = ANY($1) OR member_two_id = ANY($1)
	`, userIDs); err != nil {
		t.Fatalf("cleanup rooms: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM reservations WHERE guest_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup reservations: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM properties WHERE host_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup properties: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup users: %v", err)
	}
}
