package permission

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// GrantEvent describes one grant mutation for subscribers
type GrantEvent struct {
	Scope   string `json:"scope"`  // "document" or "system"
	Action  string `json:"action"` // "created", "updated", "deleted"
	GrantID string `json:"grant_id"`
}

// EventHub fans grant mutations out to websocket subscribers. Slow
// subscribers drop events rather than block mutations.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan GrantEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[chan GrantEvent]struct{}),
	}
}

// Subscribe registers a listener. The returned cancel func must be
// called exactly once when the listener goes away.
func (h *EventHub) Subscribe() (<-chan GrantEvent, func()) {
	ch := make(chan GrantEvent, 16)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking
func (h *EventHub) Publish(event GrantEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

type EventsController struct {
	hub    *EventHub
	logger *zap.Logger
}

func NewEventsController(hub *EventHub, logger *zap.Logger) *EventsController {
	return &EventsController{hub: hub, logger: logger}
}

// HandleWebSocket streams grant mutation events to a connected client
func (ctrl *EventsController) HandleWebSocket(c *websocket.Conn) {
	events, cancel := ctrl.hub.Subscribe()
	defer cancel()

	// Drain reads so we notice the peer closing
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for event := range events {
		if err := c.WriteJSON(event); err != nil {
			ctrl.logger.Warn("websocket write failed", zap.Error(err))
			break
		}
	}
}
