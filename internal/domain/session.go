package domain

import "time"

// Role is a staff role. The set is closed; permission checks over an
// unknown role fail at startup, not silently at request time.
type Role string

const (
	RoleAdmin    Role = "admin"
	RolePersonal Role = "personal"
)

// ValidRoles lists all roles for identity validation.
var ValidRoles = map[Role]bool{
	RoleAdmin:    true,
	RolePersonal: true,
}

// Session is an ephemeral connected-client record, owned by the
// connection: created on connect, destroyed on disconnect or evicted
// after inactivity.
type Session struct {
	ID           string
	UserID       string
	UserName     string
	Role         Role
	ConnectedAt  time.Time
	LastActivity time.Time
}
