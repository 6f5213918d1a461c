package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sitedock/sitedock/pkg/events"
)

func TestHubBroadcastsBusEvents(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub()
	go hub.Run()
	SetupEventBridge(hub, bus)

	srv := &Server{Bus: bus}
	ts := httptest.NewServer(srv.handleWebSocket(hub))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Registration completes inside the HTTP handler; give the hub
	// loop a moment to pick the client up before publishing.
	time.Sleep(200 * time.Millisecond)
	bus.Publish(events.Event{Type: events.SitesUpdated})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("No broadcast reached the websocket client: %v", err)
	}

	if got["type"] != "sites:updated" {
		t.Errorf("Expected sites:updated frame, got %v", got)
	}
}
