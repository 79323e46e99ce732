package ws

// Identity is the verified user bound to a connection at upgrade time.
type Identity struct {
	UserID int64
	Name   string
	Role   string
}

// RoomBinding caches the resolved room context for the connection's currently
// joined room so per-event handlers never re-resolve it.
type RoomBinding struct {
	RoomID           int64
	UniqueID         string
	ConversationType string
	CounterpartID    int64
	CounterpartRole  string
}

// Session is the ephemeral per-connection context. It is owned exclusively by
// the connection's read goroutine and must never be touched from outside it;
// that ownership is what lets it stay lock-free.
type Session struct {
	Identity Identity
	Room     *RoomBinding
}

func NewSession(identity Identity) *Session {
	return &Session{Identity: identity}
}

func (s *Session) InRoom() bool {
	return s.Room != nil
}

// BindRoom replaces any previous binding; exactly one room may be bound at a
// time. Callers are responsible for announcing the implicit leave first.
func (s *Session) BindRoom(binding *RoomBinding) {
	s.Room = binding
}

func (s *Session) ClearRoom() {
	s.Room = nil
}

// Teardown drops the full connection context on disconnect.
func (s *Session) Teardown() {
	s.Room = nil
	s.Identity = Identity{}
}
