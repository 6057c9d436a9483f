package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"comanda/internal/domain"
)

// wireEvent is the outbound JSON shape of a published event.
type wireEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Subscriber is one connected session's outbound queue. The write pump
// drains Send; all producers go through Enqueue, which coordinates with
// the unregister-time close so a send can never hit a closed channel.
type Subscriber struct {
	ID   string
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

// Enqueue places a message on the queue without blocking. It reports
// false when the queue is full or the subscriber is already closed.
func (s *Subscriber) Enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.Send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once. Held under the same lock
// as Enqueue so an in-flight send always completes first.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Send)
}

// Hub is the session registry and pub/sub fan-out: it groups
// subscribers into rooms and delivers each published event at most once
// per subscriber. There is no event log and no replay; a reconnecting
// client must re-fetch state with a snapshot request.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Subscriber // room → session id → subscriber
	subs   map[string]*Subscriber
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Subscriber),
		subs:   make(map[string]*Subscriber),
		logger: logger,
	}
}

// Register creates a subscriber for the session and joins it to the
// given rooms. The returned subscriber's Send channel is buffered; slow
// consumers drop events rather than stall the fan-out.
func (h *Hub) Register(sessionID string, rooms []string) *Subscriber {
	sub := &Subscriber{
		ID:   sessionID,
		Send: make(chan []byte, 256),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[sessionID] = sub
	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[string]*Subscriber)
		}
		h.rooms[room][sessionID] = sub
	}
	return sub
}

// Unregister removes the session from every room and closes its send
// channel. Safe to call more than once.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[sessionID]
	if !ok {
		return
	}
	delete(h.subs, sessionID)
	for room, members := range h.rooms {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	sub.close()
}

// Publish marshals the event once and delivers it to every subscriber
// in the event's room. Delivery is non-blocking: a full subscriber
// buffer drops the event for that session only.
func (h *Hub) Publish(ev domain.Event) {
	msg, err := json.Marshal(wireEvent{
		Type:      string(ev.Type),
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Data:      ev.Data,
	})
	if err != nil {
		h.logger.Error("event marshal failed", slog.String("event", string(ev.Type)), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.rooms[ev.Room] {
		if !sub.Enqueue(msg) {
			h.logger.Warn("subscriber unavailable, dropping event",
				slog.String("session_id", sub.ID),
				slog.String("event", string(ev.Type)),
			)
		}
	}
}

// SendTo delivers a pre-marshaled message to one session, bypassing
// rooms. Used for request acknowledgments and connection banners.
func (h *Hub) SendTo(sessionID string, msg []byte) {
	h.mu.RLock()
	sub, ok := h.subs[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !sub.Enqueue(msg) {
		h.logger.Warn("subscriber unavailable, dropping message", slog.String("session_id", sessionID))
	}
}

// RoomSize returns the number of subscribers in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
