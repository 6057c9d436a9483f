package domain

import "time"

// EventType identifies a realtime event published to connected sessions.
type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderUpdated       EventType = "order_updated"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventOrderDeleted       EventType = "order_deleted"
	EventUsersOnline        EventType = "users_online"
	EventNotification       EventType = "notification"
	EventMenuPriceChanged   EventType = "menu_price_changed"
	EventUserDisconnected   EventType = "user_disconnected"
)

// Room names scope event delivery. all_users receives every order
// event; role rooms receive role-scoped administrative events only.
const RoomAllUsers = "all_users"

// RoomForRole returns the role-scoped room name for a staff role.
func RoomForRole(r Role) string {
	return "role_" + string(r)
}

// Event is a typed realtime event. Delivery is at-most-once per
// connected session; there is no replay — a reconnecting client must
// re-fetch state with a snapshot request.
type Event struct {
	Type      EventType
	Room      string
	Timestamp time.Time
	Data      any
}
