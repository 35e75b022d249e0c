package websockets

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketManager initializes a WebSocketManager
func NewWebSocketManager(log zerolog.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[*websocket.Conn]*Client),
		log:     log.With().Str("component", "websockets").Logger(),
	}
}

// Upgrade switches the request to a WebSocket and registers the connection
// for userID. The caller owns the read loop and must call Unregister.
func (manager *WebSocketManager) Upgrade(w http.ResponseWriter, r *http.Request, userID string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "websocket upgrade")
	}

	client := &Client{Conn: conn, UserID: userID}
	manager.mu.Lock()
	manager.clients[conn] = client
	manager.mu.Unlock()

	manager.log.Debug().Str("user_id", userID).Msg("client connected")
	return client, nil
}

func (manager *WebSocketManager) Unregister(client *Client) {
	manager.mu.Lock()
	_, exists := manager.clients[client.Conn]
	delete(manager.clients, client.Conn)
	manager.mu.Unlock()

	if exists {
		client.Conn.Close()
		manager.log.Debug().Str("user_id", client.UserID).Msg("client disconnected")
	}
}

// SendToUser delivers v to every connection of userID and returns how many
// received it. Connections that fail to write are dropped.
func (manager *WebSocketManager) SendToUser(userID string, v any) int {
	manager.mu.RLock()
	targets := make([]*Client, 0, 1)
	for _, client := range manager.clients {
		if client.UserID == userID {
			targets = append(targets, client)
		}
	}
	manager.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		if err := client.Send(v); err != nil {
			manager.log.Debug().Err(err).Str("user_id", userID).Msg("dropping client after failed write")
			manager.Unregister(client)
			continue
		}
		sent++
	}
	return sent
}

// Count returns the number of open connections.
func (manager *WebSocketManager) Count() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients)
}

// Send writes v as JSON. It is safe for concurrent use.
func (c *Client) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}
