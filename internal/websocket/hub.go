package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a realtime notification pushed to connected dashboards when
// assignments are created, transitioned, or closed.
type Event struct {
	Kind         string         `json:"kind"`
	AssignmentID int64          `json:"assignment_id,omitempty"`
	ChoreID      int64          `json:"chore_id,omitempty"`
	ChildID      int64          `json:"child_id,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

const (
	EventAssigned         = "assignment_created"
	EventReadyForReview   = "assignment_ready_for_approval"
	EventMarkedIncomplete = "assignment_marked_incomplete"
	EventApproved         = "assignment_approved"
	EventPassComplete     = "scheduling_pass_complete"
	EventSweepComplete    = "close_sweep_complete"
)

// Hub maintains the set of active WebSocket clients and fans events out to
// all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every connected client. Clients with a full
// send buffer are skipped rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
