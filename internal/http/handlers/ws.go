package handlers

import (
	"net/http"
	"sync"

	"supportdesk/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ConsoleEvent is pushed to connected agent consoles when a conversation
// changes state
type ConsoleEvent struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// consoleClient serializes writes to one console connection; the websocket
// library allows only a single concurrent writer per connection
type consoleClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *consoleClient) write(event ConsoleEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

// ConsoleHub fans conversation lifecycle events out to connected consoles
type ConsoleHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*consoleClient
}

// NewConsoleHub creates a new console hub
func NewConsoleHub() *ConsoleHub {
	return &ConsoleHub{clients: map[*websocket.Conn]*consoleClient{}}
}

// Broadcast sends an event to every connected console. Broadcasts run from
// concurrent handler goroutines, so each write goes through the client's
// write lock. Dead connections are dropped.
func (hub *ConsoleHub) Broadcast(event ConsoleEvent) {
	hub.mu.RLock()
	clients := make([]*consoleClient, 0, len(hub.clients))
	for _, client := range hub.clients {
		clients = append(clients, client)
	}
	hub.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(event); err != nil {
			hub.remove(client.conn)
		}
	}
}

func (hub *ConsoleHub) add(conn *websocket.Conn) {
	hub.mu.Lock()
	hub.clients[conn] = &consoleClient{conn: conn}
	hub.mu.Unlock()
}

func (hub *ConsoleHub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	delete(hub.clients, conn)
	hub.mu.Unlock()
	conn.Close()
}

// WebSocketHandler upgrades console connections and registers them on the hub
type WebSocketHandler struct {
	hub         *ConsoleHub
	authService *auth.Service
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(hub *ConsoleHub, authService *auth.Service) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket authenticates via the token query parameter, upgrades the
// connection and keeps it registered until the peer goes away
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if !claims.IsAgent && !claims.IsAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.hub.add(conn)
	log.Debug().Str("user_id", claims.UserID.String()).Msg("console connected")

	// Reads only detect the peer closing; consoles never send payloads
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.remove(conn)
	return nil
}
