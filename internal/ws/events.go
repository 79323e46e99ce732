package ws

import "encoding/json"

// Subscriber events (client -> server).
const (
	EventChatInit    = "chat:init"
	EventChatMessage = "chat:message"
	EventUserRead    = "user:read"
	EventUserTyping  = "user:typing"
	EventRoomLeft    = "room:left"
)

// Publisher events (server -> client).
const (
	EventRoomJoin          = "room:join"
	EventUserStatus        = "user:status"
	EventAckTyping         = "user:ack-typing"
	EventAckRead           = "user:ack-read"
	EventChatStored        = "chat:stored"
	EventNotificationAlert = "notification:alert"
	EventAckRegister       = "notification:ack-register"
	EventError             = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope is the wire frame in both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the uniform failure envelope. Every business failure inside
// a handler surfaces as exactly this shape and nothing else.
type ErrorPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type InitPayload struct {
	RoomUniqueID string `json:"room_unique_id"`
}

type MessagePayload struct {
	MessageType  string `json:"message_type,omitempty"`
	Message      string `json:"message,omitempty"`
	URL          string `json:"url,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

type StoredPayload struct {
	MessageID    int64  `json:"message_id"`
	RoomUniqueID string `json:"room_unique_id"`
	CreatedAt    string `json:"created_at"`
}

type BroadcastMessagePayload struct {
	MessageID    int64  `json:"message_id"`
	RoomUniqueID string `json:"room_unique_id"`
	SenderID     int64  `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	MessageType  string `json:"message_type"`
	Message      string `json:"message,omitempty"`
	URL          string `json:"url,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type RoomJoinPayload struct {
	RoomUniqueID     string `json:"room_unique_id"`
	ConversationType string `json:"conversation_type"`
	CounterpartID    int64  `json:"counterpart_id"`
}

type RoomLeftPayload struct {
	RoomUniqueID string `json:"room_unique_id"`
	UserID       int64  `json:"user_id"`
	Self         bool   `json:"self,omitempty"`
}

type StatusPayload struct {
	RoomUniqueID string `json:"room_unique_id"`
	UserID       int64  `json:"user_id"`
	Status       string `json:"status"`
}

type ReceiptPayload struct {
	RoomUniqueID string `json:"room_unique_id"`
	UserID       int64  `json:"user_id"`
	At           string `json:"at,omitempty"`
}

// NotificationPayload is the offline-fallback shape routed to the
// counterpart's identity channel when no connection of theirs is in the room.
type NotificationPayload struct {
	RoomUniqueID string `json:"room_unique_id"`
	SenderID     int64  `json:"sender_id"`
	SenderName   string `json:"sender_name,omitempty"`
	MessageType  string `json:"message_type"`
	Preview      string `json:"preview,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type RegisterAckPayload struct {
	Channel string `json:"channel"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
