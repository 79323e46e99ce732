package models

import "time"

const (
	ConversationGuestHost  = "guest-host"
	ConversationGuestAdmin = "guest-admin"
	ConversationHostAdmin  = "host-admin"
)

const (
	MessagePlain      = "plain"
	MessageAttachment = "attachment"
	MessageDeleted    = "deleted"
)

// Room is the persisted two-party conversation container. UniqueID is the
// externally-facing opaque id; internal ids never cross the protocol boundary.
type Room struct {
	ID               int64      `json:"-"`
	UniqueID         string     `json:"unique_id"`
	ConversationType string     `json:"conversation_type"`
	MemberOneID      int64      `json:"member_one_id"`
	MemberTwoID      int64      `json:"member_two_id"`
	PropertyID       *int64     `json:"property_id,omitempty"`
	RoomQueryID      *int64     `json:"room_query_id,omitempty"`
	LastActiveAt     time.Time  `json:"last_active_at"`
	ReopenedAt       *time.Time `json:"reopened_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Counterpart returns the other member of the room relative to userID.
func (r *Room) Counterpart(userID int64) int64 {
	if r.MemberOneID == userID {
		return r.MemberTwoID
	}
	return r.MemberOneID
}

func (r *Room) HasMember(userID int64) bool {
	return r.MemberOneID == userID || r.MemberTwoID == userID
}

// RoomQuery is the booking-intent snapshot attached to guest-host rooms.
// Dates are day-granular and compared in UTC.
type RoomQuery struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"-"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Adults    int       `json:"adults"`
	Children  int       `json:"children"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatAudience is the per-room per-member read state. A nil LastSeenAt means
// the member has never seen the room and every message counts as unread.
type ChatAudience struct {
	ID         int64      `json:"id"`
	RoomID     int64      `json:"room_id"`
	UserID     int64      `json:"user_id"`
	Role       string     `json:"role"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ChatMessage struct {
	ID           int64     `json:"id"`
	RoomID       int64     `json:"-"`
	SenderID     int64     `json:"sender_id"`
	RoomQueryID  *int64    `json:"room_query_id,omitempty"`
	MessageType  string    `json:"message_type"`
	Message      string    `json:"message"`
	URL          *string   `json:"url,omitempty"`
	DocumentType *string   `json:"document_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoomSummary is a conversation-list entry for one viewer.
type RoomSummary struct {
	Room
	CounterpartID   int64        `json:"counterpart_id"`
	CounterpartName string       `json:"counterpart_name"`
	LastMessage     *ChatMessage `json:"last_message,omitempty"`
	Query           *RoomQuery   `json:"query,omitempty"`
	HasUnread       bool         `json:"has_unread"`
}

// HasUnread reports whether a room holds activity the viewer has not seen.
// A nil lastSeen is maximally stale: anything in the room counts as unread.
func HasUnread(lastActive time.Time, lastSeen *time.Time) bool {
	if lastSeen == nil {
		return true
	}
	return lastActive.After(*lastSeen)
}

// PropertyStatus is the subset of property facts the lifecycle resolver
// consumes from the booking store.
type PropertyStatus struct {
	PropertyID int64
	Status     string
	Bookable   bool
}

const PropertyActive = "active"
