package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mukuljibh/airbnb-backend-sub001/internal/repository"
	"github.com/mukuljibh/airbnb-backend-sub001/internal/services"
)

type chatSender interface {
	SendMessage(ctx context.Context, actorID int64, roomUniqueID string, input services.MessageInput) (*services.ChatDelivery, error)
	TouchActivity(ctx context.Context, roomID, userID int64) error
	MarkRead(ctx context.Context, roomID, userID int64) error
}

type roomResolver interface {
	RoomStatus(ctx context.Context, filter repository.RoomFilter, userID int64) (*services.RoomStatus, error)
}

// Gateway owns the real-time protocol: it binds connections to sessions,
// routes inbound events and decides between room broadcast and notification
// fallback on delivery.
type Gateway struct {
	chat      chatSender
	lifecycle roomResolver
	registry  *Registry
	router    *Router
}

func NewGateway(chat chatSender, lifecycle roomResolver, registry *Registry) *Gateway {
	g := &Gateway{
		chat:      chat,
		lifecycle: lifecycle,
		registry:  registry,
	}

	router := NewRouter()
	router.Handle(EventChatInit, g.handleInit, ErrorBoundary, RequireIdentity)
	router.Handle(EventChatMessage, g.handleMessage, ErrorBoundary, RequireIdentity)
	router.Handle(EventUserRead, g.handleRead, ErrorBoundary, RequireIdentity)
	router.Handle(EventUserTyping, g.handleTyping, ErrorBoundary, RequireIdentity)
	router.Handle(EventRoomLeft, g.handleLeave, ErrorBoundary, RequireIdentity)
	g.router = router

	return g
}

// HandleConnection services one websocket connection until it drops. The
// identity arrives pre-verified from the upgrade handler; the first thing the
// connection gets is its notification-channel registration.
func (g *Gateway) HandleConnection(conn Conn, identity Identity) {
	client := newClient(conn, identity)

	channel := ChannelKey(identity.UserID, identity.Role)
	g.registry.Subscribe(channel, client)
	client.sendEvent(EventAckRegister, RegisterAckPayload{Channel: channel})

	go client.WritePump()
	g.readLoop(client)
}

func (g *Gateway) readLoop(client *Client) {
	defer g.disconnect(client)

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			client.sendError("invalid event payload")
			continue
		}

		g.router.Dispatch(client, envelope.Event, envelope.Data)
	}
}

func (g *Gateway) disconnect(client *Client) {
	g.leaveCurrentRoom(client, false)
	g.registry.Drop(client)
	client.session.Teardown()
	client.closeSend()
	_ = client.conn.Close()
}

// handleInit is the join handshake. Joining the bound room again only
// re-broadcasts presence; joining a different room implicitly leaves the old
// one first. When resolution fails the old binding stays cleared and no new
// one is attached.
func (g *Gateway) handleInit(client *Client, data json.RawMessage) error {
	var payload InitPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomUniqueID == "" {
		return services.ErrInvalidInput
	}

	session := client.session

	if session.InRoom() && session.Room.UniqueID == payload.RoomUniqueID {
		g.broadcastPresence(client, session.Room.UniqueID, StatusOnline)
		client.sendEvent(EventRoomJoin, RoomJoinPayload{
			RoomUniqueID:     session.Room.UniqueID,
			ConversationType: session.Room.ConversationType,
			CounterpartID:    session.Room.CounterpartID,
		})
		return nil
	}

	g.leaveCurrentRoom(client, false)

	status, err := g.lifecycle.RoomStatus(
		context.Background(),
		repository.RoomFilter{UniqueID: payload.RoomUniqueID},
		session.Identity.UserID,
	)
	if err != nil {
		return err
	}
	if !status.Exists {
		return services.ErrNotFound
	}
	if status.Expired {
		return services.ErrExpiredSession
	}

	room := status.Room
	session.BindRoom(&RoomBinding{
		RoomID:           room.ID,
		UniqueID:         room.UniqueID,
		ConversationType: room.ConversationType,
		CounterpartID:    room.Counterpart(session.Identity.UserID),
		CounterpartRole:  services.CounterpartRole(room.ConversationType, session.Identity.Role),
	})
	g.registry.JoinRoom(room.UniqueID, client)

	client.sendEvent(EventRoomJoin, RoomJoinPayload{
		RoomUniqueID:     room.UniqueID,
		ConversationType: room.ConversationType,
		CounterpartID:    session.Room.CounterpartID,
	})
	g.broadcastPresence(client, room.UniqueID, StatusOnline)

	return nil
}

func (g *Gateway) handleMessage(client *Client, data json.RawMessage) error {
	binding := client.session.Room
	if binding == nil {
		return errNoRoomBound
	}

	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return services.ErrInvalidInput
	}

	sender := client.session.Identity
	delivery, err := g.chat.SendMessage(context.Background(), sender.UserID, binding.UniqueID, services.MessageInput{
		MessageType:  payload.MessageType,
		Message:      payload.Message,
		URL:          payload.URL,
		DocumentType: payload.DocumentType,
	})
	if err != nil {
		return err
	}

	message := delivery.Message
	createdAt := services.FormatChatTimestamp(message.CreatedAt)

	// The stored ack is the sender's persistence confirmation and always goes
	// out before the room broadcast.
	client.sendEvent(EventChatStored, StoredPayload{
		MessageID:    message.ID,
		RoomUniqueID: binding.UniqueID,
		CreatedAt:    createdAt,
	})

	// Best-effort activity bumps; the send already succeeded, so failures are
	// logged and never surfaced.
	roomID, userID := binding.RoomID, sender.UserID
	go func() {
		if err := g.chat.TouchActivity(context.Background(), roomID, userID); err != nil {
			log.Printf("ws: touch activity room=%d user=%d: %v", roomID, userID, err)
		}
	}()

	broadcast := BroadcastMessagePayload{
		MessageID:    message.ID,
		RoomUniqueID: binding.UniqueID,
		SenderID:     sender.UserID,
		SenderName:   sender.Name,
		MessageType:  message.MessageType,
		Message:      message.Message,
		CreatedAt:    createdAt,
	}
	if message.URL != nil {
		broadcast.URL = *message.URL
	}
	if message.DocumentType != nil {
		broadcast.DocumentType = *message.DocumentType
	}

	// Counterpart not viewing the room: route a notification to their
	// identity channel instead of relying on the room broadcast.
	if !g.registry.UserInRoom(binding.UniqueID, binding.CounterpartID) {
		alert, err := encodeEvent(EventNotificationAlert, NotificationPayload{
			RoomUniqueID: binding.UniqueID,
			SenderID:     sender.UserID,
			SenderName:   sender.Name,
			MessageType:  message.MessageType,
			Preview:      message.Message,
			CreatedAt:    createdAt,
		})
		if err == nil {
			g.registry.SendChannel(ChannelKey(binding.CounterpartID, binding.CounterpartRole), alert)
		}
	}

	// The canonical message event goes to the room either way so the sender's
	// other tabs and any present peer converge on the same state.
	if encoded, err := encodeEvent(EventChatMessage, broadcast); err == nil {
		g.registry.BroadcastRoom(binding.UniqueID, encoded)
	}

	return nil
}

func (g *Gateway) handleRead(client *Client, _ json.RawMessage) error {
	binding := client.session.Room
	if binding == nil {
		return errNoRoomBound
	}

	roomID, userID := binding.RoomID, client.session.Identity.UserID
	go func() {
		if err := g.chat.MarkRead(context.Background(), roomID, userID); err != nil {
			log.Printf("ws: mark read room=%d user=%d: %v", roomID, userID, err)
		}
	}()

	if receipt, err := encodeEvent(EventAckRead, ReceiptPayload{
		RoomUniqueID: binding.UniqueID,
		UserID:       userID,
	}); err == nil {
		g.registry.BroadcastRoomExcept(binding.UniqueID, client, receipt)
	}

	return nil
}

// Typing is stateless: nothing persists, peers just see the indicator.
func (g *Gateway) handleTyping(client *Client, _ json.RawMessage) error {
	binding := client.session.Room
	if binding == nil {
		return errNoRoomBound
	}

	if indicator, err := encodeEvent(EventAckTyping, ReceiptPayload{
		RoomUniqueID: binding.UniqueID,
		UserID:       client.session.Identity.UserID,
	}); err == nil {
		g.registry.BroadcastRoomExcept(binding.UniqueID, client, indicator)
	}

	return nil
}

func (g *Gateway) handleLeave(client *Client, _ json.RawMessage) error {
	if !client.session.InRoom() {
		return errNoRoomBound
	}
	g.leaveCurrentRoom(client, true)
	return nil
}

// leaveCurrentRoom announces departure to room peers, optionally echoes a
// self-notice, then detaches the binding. No-op when nothing is bound.
func (g *Gateway) leaveCurrentRoom(client *Client, notifySelf bool) {
	binding := client.session.Room
	if binding == nil {
		return
	}

	userID := client.session.Identity.UserID

	if g.registry.RoomOccupiedByOthers(binding.UniqueID, client) {
		if notice, err := encodeEvent(EventRoomLeft, RoomLeftPayload{
			RoomUniqueID: binding.UniqueID,
			UserID:       userID,
		}); err == nil {
			g.registry.BroadcastRoomExcept(binding.UniqueID, client, notice)
		}
		g.broadcastPresence(client, binding.UniqueID, StatusOffline)
	}

	if notifySelf {
		client.sendEvent(EventRoomLeft, RoomLeftPayload{
			RoomUniqueID: binding.UniqueID,
			UserID:       userID,
			Self:         true,
		})
	}

	g.registry.LeaveRoom(binding.UniqueID, client)
	client.session.ClearRoom()
}

// broadcastPresence emits a user:status transition to room peers, skipped
// entirely when no one else is in the group to observe it.
func (g *Gateway) broadcastPresence(client *Client, roomUniqueID, status string) {
	if !g.registry.RoomOccupiedByOthers(roomUniqueID, client) {
		return
	}
	if payload, err := encodeEvent(EventUserStatus, StatusPayload{
		RoomUniqueID: roomUniqueID,
		UserID:       client.session.Identity.UserID,
		Status:       status,
	}); err == nil {
		g.registry.BroadcastRoomExcept(roomUniqueID, client, payload)
	}
}
