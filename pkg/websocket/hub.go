package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

var (
	// ErrConnectionNotFound is returned when a handle has no live client
	ErrConnectionNotFound = errors.New("websocket: connection not found")
	// ErrSendBufferFull is returned when the client cannot keep up
	ErrSendBufferFull = errors.New("websocket: client send buffer full")
)

// Hub maintains active client connections and routes messages to them
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
}

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				logger.String("client_id", client.ID),
				logger.String("user_id", client.UserID),
				logger.String("user_type", client.UserType),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Info("Client unregistered",
					logger.String("client_id", client.ID),
				)
			}
			h.mu.Unlock()
		}
	}
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ConnectionHandle returns the handle of the most recently connected client
// for the user, or "" when the user has no live connection.
func (h *Hub) ConnectionHandle(userID, userType string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var latest *Client
	for _, client := range h.clients {
		if client.UserID != userID || client.UserType != userType {
			continue
		}
		if latest == nil || client.ConnectedAt.After(latest.ConnectedAt) {
			latest = client
		}
	}
	if latest == nil {
		return ""
	}
	return latest.ID
}

// SendToConnection queues a message for the client behind handle.
// It never blocks: a slow client gets ErrSendBufferFull.
func (h *Hub) SendToConnection(handle string, message Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handle]
	if !ok {
		return ErrConnectionNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// GetActiveConnections returns the number of active connections
func (h *Hub) GetActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetClientsByUserType returns count of clients by user type
func (h *Hub) GetClientsByUserType(userType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, client := range h.clients {
		if client.UserType == userType {
			count++
		}
	}
	return count
}
