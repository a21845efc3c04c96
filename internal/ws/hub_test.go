package ws

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"club-chat-service/internal/models"
)

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a", UserID: 1}, 4)

	hub.Register(client)
	hub.Subscribe(client, 1)
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room registry entry after subscribe")
	}

	hub.Unsubscribe(client, 1)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected empty room to be removed")
	}
}

func TestHubSubscribeIgnoresUnregisteredClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a"}, 4)

	hub.Subscribe(client, 1)
	if len(hub.rooms) != 0 {
		t.Fatalf("unregistered client must not create a room entry")
	}
}

func TestHubBroadcastDelivers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a", UserID: 1}, 4)
	other := NewClient(hub, nil, ConnInfo{ConnID: "b", UserID: 2}, 4)

	hub.Register(client)
	hub.Register(other)
	hub.Subscribe(client, 5)
	hub.Subscribe(other, 9)

	hub.Broadcast(5, models.RoomEvent{Type: models.EventMessage, RoomID: 5, SenderID: 1, Content: "hi"})

	select {
	case payload := <-client.send:
		var event models.RoomEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != models.EventMessage || event.RoomID != 5 {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatalf("expected event in subscriber queue")
	}

	select {
	case <-other.send:
		t.Fatalf("subscriber of another room must not receive the event")
	default:
	}
}

func TestHubBroadcastDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a", UserID: 1}, 1)

	hub.Register(client)
	hub.Subscribe(client, 5)

	// First event fills the queue; the second finds it full and evicts
	// the subscriber.
	hub.Broadcast(5, models.RoomEvent{Type: models.EventMessage, RoomID: 5})
	hub.Broadcast(5, models.RoomEvent{Type: models.EventMessage, RoomID: 5})

	hub.mu.RLock()
	_, registered := hub.clients[client]
	roomCount := len(hub.rooms)
	hub.mu.RUnlock()

	if registered {
		t.Fatalf("expected slow subscriber to be unregistered")
	}
	if roomCount != 0 {
		t.Fatalf("expected dropped subscriber's room entry to be cleaned up")
	}
}

func TestHubUnregisterCleansRooms(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a", UserID: 1}, 4)

	hub.Register(client)
	hub.Subscribe(client, 1)
	hub.Subscribe(client, 2)

	hub.Unregister(client)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected all room memberships to be removed")
	}
}

func TestHubShutdownStopsRegistrations(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a", UserID: 1}, 4)
	hub.Register(client)

	hub.Shutdown()

	select {
	case <-client.done:
	default:
		t.Fatalf("expected shutdown to close existing clients")
	}

	late := NewClient(hub, nil, ConnInfo{ConnID: "b", UserID: 2}, 4)
	hub.Register(late)
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.clients[late]; ok {
		t.Fatalf("expected registrations after shutdown to be rejected")
	}
}

func TestClientTrySendAfterClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(hub, nil, ConnInfo{ConnID: "a"}, 1)
	hub.Register(client)
	client.Close()

	if !client.trySend([]byte("x")) {
		t.Fatalf("trySend on a closing client must report delivered")
	}
}

func TestConnInfoAnonymous(t *testing.T) {
	if !(ConnInfo{}).Anonymous() {
		t.Fatalf("zero user id must be anonymous")
	}
	if (ConnInfo{UserID: 3}).Anonymous() {
		t.Fatalf("verified user must not be anonymous")
	}
}
