package ws

import (
	"fmt"
	"sync"
)

// Registry is the single-node presence authority: which connections are in
// which room group, and which notification channels each identity listens on.
// It is created at server start and injected into the gateway; nothing in
// this package reaches for it as a global.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	channels map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// ChannelKey names the per-identity-per-role fallback channel.
func ChannelKey(userID int64, role string) string {
	return fmt.Sprintf("%d_%s", userID, role)
}

func (r *Registry) Subscribe(key string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[key]
	if !ok {
		set = make(map[*Client]struct{})
		r.channels[key] = set
	}
	set[client] = struct{}{}
}

func (r *Registry) JoinRoom(roomUniqueID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[roomUniqueID]
	if !ok {
		set = make(map[*Client]struct{})
		r.rooms[roomUniqueID] = set
	}
	set[client] = struct{}{}
}

func (r *Registry) LeaveRoom(roomUniqueID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(r.rooms, roomUniqueID, client)
}

// Drop removes the client from every room group and channel. Called once on
// disconnect.
func (r *Registry) Drop(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.rooms {
		r.removeLocked(r.rooms, key, client)
	}
	for key := range r.channels {
		r.removeLocked(r.channels, key, client)
	}
}

// UserInRoom reports whether any connection of userID currently holds
// membership in the room group. This is the delivery decision for the
// notification fallback.
func (r *Registry) UserInRoom(roomUniqueID string, userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for client := range r.rooms[roomUniqueID] {
		if client.session.Identity.UserID == userID {
			return true
		}
	}
	return false
}

// RoomOccupiedByOthers reports whether the room group holds any connection
// besides the given one. Presence transitions are only broadcast when someone
// is there to observe them.
func (r *Registry) RoomOccupiedByOthers(roomUniqueID string, except *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for client := range r.rooms[roomUniqueID] {
		if client != except {
			return true
		}
	}
	return false
}

func (r *Registry) BroadcastRoom(roomUniqueID string, payload []byte) {
	r.broadcastRoom(roomUniqueID, nil, payload)
}

func (r *Registry) BroadcastRoomExcept(roomUniqueID string, except *Client, payload []byte) {
	r.broadcastRoom(roomUniqueID, except, payload)
}

// SendChannel fans a payload out to every connection subscribed to the
// identity channel, regardless of which room (if any) each one is viewing.
func (r *Registry) SendChannel(key string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.channels[key] {
		if !client.enqueue(payload) {
			r.removeEverywhereLocked(client)
		}
	}
}

func (r *Registry) broadcastRoom(roomUniqueID string, except *Client, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.rooms[roomUniqueID] {
		if client == except {
			continue
		}
		if !client.enqueue(payload) {
			r.removeEverywhereLocked(client)
		}
	}
}

// Slow consumers whose send buffer overflowed are evicted from all groups so
// they stop receiving fan-out. Closing the send channel makes the write pump
// drain the backlog, exit and close the connection, which drives the read
// loop into the normal disconnect teardown.
func (r *Registry) removeEverywhereLocked(client *Client) {
	for key := range r.rooms {
		delete(r.rooms[key], client)
		if len(r.rooms[key]) == 0 {
			delete(r.rooms, key)
		}
	}
	for key := range r.channels {
		delete(r.channels[key], client)
		if len(r.channels[key]) == 0 {
			delete(r.channels, key)
		}
	}
	client.closeSend()
}

func (r *Registry) removeLocked(groups map[string]map[*Client]struct{}, key string, client *Client) {
	set, ok := groups[key]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(groups, key)
	}
}
