package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sitedock/sitedock/pkg/events"
)

// writeWait bounds a single broadcast write so one stalled client
// cannot block the hub loop and, through it, every bus publish.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // API binds to loopback only, so any local origin is fine
	},
}

type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan interface{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			fmt.Println("WS: Client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			fmt.Println("WS: Client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				err := client.WriteJSON(message)
				if err != nil {
					fmt.Printf("WS: Write error: %v\n", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (s *Server) handleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			fmt.Printf("WS: Upgrade error: %v\n", err)
			return
		}

		hub.register <- conn

		// Listen for close
		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				_, _, err := conn.ReadMessage()
				if err != nil {
					break
				}
			}
		}()
	}
}

// SetupEventBridge forwards bus events to connected websocket clients.
func SetupEventBridge(hub *Hub, bus *events.Bus) {
	bus.Subscribe(events.SitesUpdated, func(e events.Event) {
		hub.broadcast <- map[string]interface{}{
			"type": "sites:updated",
			"data": e.Payload,
		}
	})

	bus.Subscribe(events.ProxyStateChanged, func(e events.Event) {
		hub.broadcast <- map[string]interface{}{
			"type": "proxy:state",
			"data": e.Payload,
		}
	})

	bus.Subscribe(events.SiteProbed, func(e events.Event) {
		hub.broadcast <- map[string]interface{}{
			"type": "site:probed",
			"data": e.Payload,
		}
	})

	bus.Subscribe(events.AccessLogEntry, func(e events.Event) {
		hub.broadcast <- map[string]interface{}{
			"type": "access:entry",
			"data": e.Payload,
		}
	})
}
