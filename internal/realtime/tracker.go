package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"comanda/internal/domain"
	"comanda/internal/metrics"
	"comanda/internal/store"

	"github.com/google/uuid"
)

// onlineUser is the wire shape of one entry in a users_online event.
type onlineUser struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ConnectedAt string `json:"connected_at"`
}

// Tracker owns the connected-session lifecycle: registration on
// connect, heartbeat touches, immediate removal on disconnect, and a
// periodic sweep that evicts sessions idle longer than the sweep
// interval. Every membership change republishes the online-user list to
// all_users.
type Tracker struct {
	sessions  *store.SessionStore
	hub       *Hub
	interval  time.Duration
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewTracker creates a Tracker sweeping at the given interval. collector
// may be nil in tests.
func NewTracker(sessions *store.SessionStore, hub *Hub, interval time.Duration, collector *metrics.Collector, logger *slog.Logger) *Tracker {
	return &Tracker{
		sessions:  sessions,
		hub:       hub,
		interval:  interval,
		collector: collector,
		logger:    logger,
	}
}

// Connect registers a session for a verified identity, joins it to
// all_users and its role room, and announces the new online-user list.
// It returns the session and its hub subscriber.
func (t *Tracker) Connect(userID, userName string, role domain.Role, now time.Time) (*domain.Session, *Subscriber) {
	sess := &domain.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		UserName:     userName,
		Role:         role,
		ConnectedAt:  now,
		LastActivity: now,
	}
	t.sessions.Register(sess)
	sub := t.hub.Register(sess.ID, []string{domain.RoomAllUsers, domain.RoomForRole(role)})
	if t.collector != nil {
		t.collector.SessionConnected()
	}

	t.logger.Info("session connected",
		slog.String("session_id", sess.ID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	t.publishOnline(now)
	return sess, sub
}

// Heartbeat refreshes the session's last-activity timestamp.
func (t *Tracker) Heartbeat(sessionID string, now time.Time) error {
	return t.sessions.Touch(sessionID, now)
}

// Disconnect removes the session immediately and republishes the
// online-user list. Already-removed sessions (e.g. evicted by the
// sweep) are a no-op.
func (t *Tracker) Disconnect(sessionID string, now time.Time) {
	sess, err := t.sessions.Remove(sessionID)
	t.hub.Unregister(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return
	}
	if t.collector != nil {
		t.collector.SessionClosed()
	}

	t.logger.Info("session disconnected",
		slog.String("session_id", sessionID),
		slog.String("user_id", sess.UserID),
	)
	t.publishOnline(now)
	t.hub.Publish(domain.Event{
		Type:      domain.EventUserDisconnected,
		Room:      domain.RoomAllUsers,
		Timestamp: now,
		Data: map[string]string{
			"user_id": sess.UserID,
			"name":    sess.UserName,
			"role":    string(sess.Role),
		},
	})
}

// Start launches the sweep goroutine. It stops when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.sweep(now)
			}
		}
	}()
}

// sweep evicts sessions whose last activity predates one full interval
// and announces the updated online list if anything changed.
func (t *Tracker) sweep(now time.Time) {
	evicted := t.sessions.Sweep(now.Add(-t.interval))
	if len(evicted) == 0 {
		return
	}
	for _, sess := range evicted {
		t.hub.Unregister(sess.ID)
		if t.collector != nil {
			t.collector.SessionClosed()
		}
		t.logger.Info("session evicted",
			slog.String("session_id", sess.ID),
			slog.String("user_id", sess.UserID),
			slog.Time("last_activity", sess.LastActivity),
		)
	}
	t.publishOnline(now)
}

// OnlineUsers returns the current online-user list payload.
func (t *Tracker) OnlineUsers() []onlineUser {
	sessions := t.sessions.List()
	out := make([]onlineUser, len(sessions))
	for i, s := range sessions {
		out[i] = onlineUser{
			SessionID:   s.ID,
			UserID:      s.UserID,
			Name:        s.UserName,
			Role:        string(s.Role),
			ConnectedAt: s.ConnectedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}

func (t *Tracker) publishOnline(now time.Time) {
	t.hub.Publish(domain.Event{
		Type:      domain.EventUsersOnline,
		Room:      domain.RoomAllUsers,
		Timestamp: now,
		Data:      t.OnlineUsers(),
	})
}
