package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcp-registry/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event is a registry change pushed to connected admin clients.
type Event struct {
	Action         string         `json:"action"`
	RegistrationID uuid.UUID      `json:"registration_id"`
	ActorID        uuid.UUID      `json:"actor_id"`
	PreviousStatus *models.Status `json:"previous_status,omitempty"`
	NewStatus      *models.Status `json:"new_status,omitempty"`
	At             time.Time      `json:"at"`
}

// Publisher pushes registry events to the shared Redis channel so every
// instance's hub sees them.
type Publisher interface {
	PublishEvent(payload []byte) error
}

// Subscriber receives registry events published by any instance.
type Subscriber interface {
	SubscribeEvents(handler func(payload []byte)) (cancel func(), err error)
}

// Hub fans registry events out to connected WebSocket clients. The feed is
// a single channel shared by all instances via Redis pub/sub: Publish goes
// to Redis only, and the subscription callback performs the local broadcast
// so each client receives the event exactly once.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	stopped bool
	logger  *zap.Logger
	pub     Publisher
	cancel  func()
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger, pub Publisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
	}
}

// Start subscribes the hub to the shared event channel. Call once at
// startup; Stop releases the subscription.
func (h *Hub) Start(sub Subscriber) error {
	if sub == nil {
		return nil
	}
	cancel, err := sub.SubscribeEvents(func(payload []byte) {
		h.broadcast(payload)
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	return nil
}

// Stop cancels the Redis subscription and disconnects all clients. Marking
// the hub stopped under the write lock means no broadcast is in flight once
// we hold it, so the send channels are safe to close afterwards.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	cancel := h.cancel
	h.cancel = nil
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	for _, c := range clients {
		c.close()
	}
}

// Publish sends an event to every connected client on every instance.
// Without Redis the broadcast stays local.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishEvent(payload); err != nil {
			h.logger.Warn("event publish failed", zap.Error(err))
			h.broadcast(payload)
		}
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// buffer full, skip
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event client connected", zap.String("client_id", c.id), zap.Int("clients", n))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event client disconnected", zap.String("client_id", c.id), zap.Int("clients", n))
}

// ClientCount returns the number of connected clients on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
