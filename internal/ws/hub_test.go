package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"conversation-service/internal/models"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient("direct:a1_b1", nil, ConnInfo{ConnID: "c1", UserID: "a1"})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}

	hub.RemoveClient("direct:a1_b1", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected room to be removed")
	}
}

func TestHubRoomsAreIndependent(t *testing.T) {
	hub := NewHub()

	hub.AddClient("direct:a1_b1", nil, ConnInfo{})
	hub.AddClient("group:g1", nil, ConnInfo{})
	if len(hub.rooms) != 2 {
		t.Fatalf("expected two rooms, got %d", len(hub.rooms))
	}

	hub.RemoveClient("group:g1", nil)
	if len(hub.rooms) != 1 {
		t.Fatalf("expected one room after removal, got %d", len(hub.rooms))
	}
	if _, ok := hub.rooms["direct:a1_b1"]; !ok {
		t.Fatalf("expected direct room to survive group removal")
	}
}

func TestBroadcastSurvivesConcurrentMembershipChanges(t *testing.T) {
	hub := NewHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	hub.AddClient("direct:a1_b1", conn, ConnInfo{ConnID: "c1", UserID: "a1"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			other, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return
			}
			hub.AddClient("direct:a1_b1", other, ConnInfo{})
			hub.RemoveClient("direct:a1_b1", other)
			other.Close()
		}
	}()
	for i := 0; i < 25; i++ {
		hub.BroadcastEvent("direct:a1_b1", models.ConversationEvent{Type: "message", Conversation: "direct:a1_b1"})
	}
	<-done
}
