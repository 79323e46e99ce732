package ws

import "testing"

func TestRegistryRoomMembership(t *testing.T) {
	registry := NewRegistry()
	guest := newClient(fakeConn{}, Identity{UserID: 1, Role: "guest"})
	host := newClient(fakeConn{}, Identity{UserID: 2, Role: "host"})

	registry.JoinRoom("room-a", guest)

	if !registry.UserInRoom("room-a", 1) {
		t.Fatal("expected guest to be in room-a")
	}
	if registry.UserInRoom("room-a", 2) {
		t.Fatal("host never joined room-a")
	}
	if registry.RoomOccupiedByOthers("room-a", guest) {
		t.Fatal("guest is alone; no other occupants expected")
	}

	registry.JoinRoom("room-a", host)
	if !registry.RoomOccupiedByOthers("room-a", guest) {
		t.Fatal("expected host to count as another occupant")
	}

	registry.LeaveRoom("room-a", host)
	if registry.UserInRoom("room-a", 2) {
		t.Fatal("expected host to be gone after leave")
	}
}

func TestRegistryBroadcastRoomExceptSkipsSender(t *testing.T) {
	registry := NewRegistry()
	sender := newClient(fakeConn{}, Identity{UserID: 1, Role: "guest"})
	peer := newClient(fakeConn{}, Identity{UserID: 2, Role: "host"})
	registry.JoinRoom("room-a", sender)
	registry.JoinRoom("room-a", peer)

	registry.BroadcastRoomExcept("room-a", sender, []byte(`{"event":"user:ack-typing"}`))

	if got := len(drainEnvelopes(t, sender)); got != 0 {
		t.Fatalf("sender should receive nothing, got %d events", got)
	}
	if got := len(drainEnvelopes(t, peer)); got != 1 {
		t.Fatalf("peer should receive 1 event, got %d", got)
	}
}

func TestRegistrySendChannelReachesAllSubscribedConnections(t *testing.T) {
	registry := NewRegistry()
	phone := newClient(fakeConn{}, Identity{UserID: 2, Role: "host"})
	laptop := newClient(fakeConn{}, Identity{UserID: 2, Role: "host"})
	key := ChannelKey(2, "host")
	registry.Subscribe(key, phone)
	registry.Subscribe(key, laptop)

	registry.SendChannel(key, []byte(`{"event":"notification:alert"}`))

	if len(drainEnvelopes(t, phone)) != 1 || len(drainEnvelopes(t, laptop)) != 1 {
		t.Fatal("expected the channel payload on every subscribed connection")
	}
}

func TestRegistryDropRemovesClientEverywhere(t *testing.T) {
	registry := NewRegistry()
	client := newClient(fakeConn{}, Identity{UserID: 1, Role: "guest"})
	registry.Subscribe(ChannelKey(1, "guest"), client)
	registry.JoinRoom("room-a", client)

	registry.Drop(client)

	if registry.UserInRoom("room-a", 1) {
		t.Fatal("expected client to leave the room on drop")
	}
	registry.SendChannel(ChannelKey(1, "guest"), []byte(`{"event":"notification:alert"}`))
	if len(drainEnvelopes(t, client)) != 0 {
		t.Fatal("expected no channel delivery after drop")
	}
}

func TestRegistryEvictsSlowConsumers(t *testing.T) {
	registry := NewRegistry()
	slow := newClient(fakeConn{}, Identity{UserID: 1, Role: "guest"})
	registry.JoinRoom("room-a", slow)

	// Saturate the send buffer so the next fan-out cannot be enqueued.
	for slow.enqueue([]byte(`{}`)) {
	}

	registry.BroadcastRoom("room-a", []byte(`{"event":"chat:message"}`))

	if registry.UserInRoom("room-a", 1) {
		t.Fatal("expected the saturated client to be evicted from the room")
	}
}

func TestRegistryEvictionShutsDownTheConsumer(t *testing.T) {
	registry := NewRegistry()
	slow := newClient(fakeConn{}, Identity{UserID: 1, Role: "guest"})
	registry.Subscribe(ChannelKey(1, "guest"), slow)
	registry.JoinRoom("room-a", slow)

	for slow.enqueue([]byte(`{}`)) {
	}
	registry.BroadcastRoom("room-a", []byte(`{"event":"chat:message"}`))

	// Eviction must not leave a live-looking connection that nothing can
	// reach: once the backlog drains, the send channel is closed so the
	// write pump exits and tears the connection down.
	for {
		select {
		case _, ok := <-slow.send:
			if ok {
				continue
			}
			if slow.enqueue([]byte(`{}`)) {
				t.Fatal("enqueue must fail after shutdown")
			}
			return
		default:
			t.Fatal("expected the send channel closed after eviction")
		}
	}
}
