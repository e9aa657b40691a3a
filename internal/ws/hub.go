package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-taskboard/internal/events"
	"go-taskboard/internal/rbac"
	"go-taskboard/pkg/metrics"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection with the task_instances read scope of its user.
// HidePII clients never receive assignee or creator ids.
type Client struct {
	Conn    Conn
	Scope   rbac.Scope
	HidePII bool
}

// Hub delivers task events to every client whose scope admits the task.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan events.TaskEvent
	done       chan struct{}
	mutex      sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.TaskEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Register adds c to the hub. After shutdown the connection is closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Conn.Close()
	}
}

// Unregister removes c. It returns immediately once the hub has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues ev for delivery. A full queue drops the event.
func (h *Hub) Publish(ev events.TaskEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("ws broadcast queue full, dropping event", zap.String("task", ev.TaskID.String()))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				c.Conn.Close()
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			close(h.done)
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			metrics.SetWSClients(len(h.clients))
			h.mutex.Unlock()
			h.log.Debug("ws client connected", zap.String("scope", string(c.Scope.Level)))

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Conn.Close()
			}
			metrics.SetWSClients(len(h.clients))
			h.mutex.Unlock()

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev events.TaskEvent) {
	full, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode ws event", zap.Error(err))
		return
	}
	redacted, err := json.Marshal(ev.Redacted())
	if err != nil {
		h.log.Error("encode ws event", zap.Error(err))
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		if !c.Scope.Permits(ev.LocalityID, ev.SpecialtyID, ev.AssignedToID, ev.CreatedBy) {
			continue
		}
		msg := full
		if c.HidePII {
			msg = redacted
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.Conn.Close()
			delete(h.clients, c)
		}
	}
	metrics.SetWSClients(len(h.clients))
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
