package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Hub maintains the set of active clients, keyed by user. A user can
// hold several sessions (phone and tablet) at once.
type Hub struct {
	// Registered clients map: UserID -> sessions
	clients map[uuid.UUID]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			sessions, ok := h.clients[client.UserID]
			if !ok {
				sessions = make(map[*Client]bool)
				h.clients[client.UserID] = sessions
			}
			sessions[client] = true
			log.Printf("📱 User connected: %s (%d sessions)", client.UserID, len(sessions))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if sessions, ok := h.clients[client.UserID]; ok {
				if _, ok := sessions[client]; ok {
					delete(sessions, client)
					close(client.send)
					if len(sessions) == 0 {
						delete(h.clients, client.UserID)
					}
					log.Printf("📴 User disconnected: %s", client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser delivers a message to every active session of one user.
// Returns true if at least one session received it.
func (h *Hub) SendToUser(userID uuid.UUID, message interface{}) bool {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for client := range h.clients[userID] {
		select {
		case client.send <- jsonMsg:
			delivered = true
		default:
			// Session too slow to drain its buffer; skip it.
		}
	}
	return delivered
}

// ConnectedUsers returns the number of users with at least one session.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
