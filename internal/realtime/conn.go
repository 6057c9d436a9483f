package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// Request is one inbound client event. RequestID doubles as the
// idempotency key for payment application.
type Request struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// Ack is the per-request acknowledgment returned to the caller, in
// addition to any broadcast the request produced.
type Ack struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}

// MarshalAck renders an acknowledgment for the send queue.
func MarshalAck(a Ack) []byte {
	b, _ := json.Marshal(a)
	return b
}

// RequestHandler processes one inbound request and returns the ack to
// send back.
type RequestHandler func(req Request) Ack

// Conn pumps messages between one websocket connection and the hub.
type Conn struct {
	ws      *websocket.Conn
	sub     *Subscriber
	handle  RequestHandler
	onClose func()
	logger  *slog.Logger
}

// NewConn wires a websocket connection to its hub subscriber. onClose
// runs exactly once, after the read pump exits.
func NewConn(ws *websocket.Conn, sub *Subscriber, handle RequestHandler, onClose func(), logger *slog.Logger) *Conn {
	return &Conn{ws: ws, sub: sub, handle: handle, onClose: onClose, logger: logger}
}

// Run starts the write pump and blocks in the read pump until the
// connection drops.
func (c *Conn) Run() {
	go c.writePump()
	c.readPump()
}

// readPump reads inbound requests, dispatches them, and queues the ack.
// Handler execution happens on this goroutine, so requests from one
// session are processed in arrival order.
func (c *Conn) readPump() {
	defer func() {
		c.onClose()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", slog.String("session_id", c.sub.ID), slog.String("error", err.Error()))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.enqueue(MarshalAck(Ack{Type: "ack", Success: false, Message: "request must be valid JSON"}))
			continue
		}
		c.enqueue(MarshalAck(c.handle(req)))
	}
}

// writePump drains the subscriber queue and keeps the connection alive
// with pings. A closed queue (hub unregister) sends a close frame.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.sub.Send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue places a message on this session's own queue without blocking
// the read loop. The subscriber may already be closed by an eviction
// sweep racing the dispatch; the ack is then dropped with the session.
func (c *Conn) enqueue(msg []byte) {
	if !c.sub.Enqueue(msg) {
		c.logger.Warn("subscriber unavailable, dropping ack", slog.String("session_id", c.sub.ID))
	}
}
