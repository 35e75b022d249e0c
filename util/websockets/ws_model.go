package websockets

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message types
const (
	// server to client
	MsgTypeSnapshot      = "snapshot"
	MsgTypeError         = "error"
	MsgTypeStatusChanged = "status_changed"
	MsgTypeUpvoteResult  = "upvote_result"

	// client to server
	MsgTypeToggleUpvote = "toggle_upvote"
	MsgTypeFilters      = "filters"
)

// Client represents a connected WebSocket user
type Client struct {
	Conn   *websocket.Conn
	UserID string

	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

type WebSocketManager struct {
	clients map[*websocket.Conn]*Client
	mu      sync.RWMutex
	log     zerolog.Logger
}

// Message is an incoming client message.
type Message struct {
	Type     string `json:"type"`
	TicketID string `json:"ticket_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// ErrorMessage tells the client an action failed.
type ErrorMessage struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	TicketID string `json:"ticket_id,omitempty"`
}
