package gateway

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/logging"
)

// EventHub broadcasts turn lifecycle events to WebSocket subscribers. It is
// the controller's Notifier; browsers subscribe on /api/events to re-render
// while a turn progresses.
type EventHub struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan chat.Event
}

// NewEventHub creates the hub. allowedOrigins gates browser connections.
func NewEventHub(log *logging.Logger, allowedOrigins []string) *EventHub {
	return &EventHub{
		log:     log.Sub("gateway.events"),
		clients: make(map[*websocket.Conn]chan chat.Event),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // same-origin or non-browser clients
				}
				return isOriginAllowed(origin, allowedOrigins)
			},
		},
	}
}

// Notify broadcasts an event to every subscriber. Subscribers that cannot
// keep up are dropped rather than blocking the turn.
func (h *EventHub) Notify(e chat.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- e:
		default:
			h.log.Warn().Str("remote", conn.RemoteAddr().String()).
				Msg("dropping slow event subscriber")
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := make(chan chat.Event, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("event subscriber connected")

	go h.writeLoop(conn, ch)

	// Drain the connection; exit the read loop on close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

func (h *EventHub) writeLoop(conn *websocket.Conn, ch chan chat.Event) {
	for e := range ch {
		if err := conn.WriteJSON(e); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// Close disconnects all subscribers.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
}
