package auth

import (
	"fmt"

	"comanda/internal/domain"
)

// Resource is a protected resource class.
type Resource string

const (
	ResourceOrders   Resource = "orders"
	ResourceMenu     Resource = "menu"
	ResourceSessions Resource = "sessions"
	ResourceReports  Resource = "reports"
)

// Action is an operation on a resource.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionModifyStatus Action = "modify_status"
	ActionModifyPrices Action = "modify_prices"
	ActionNotify       Action = "notify"
)

// permission is one (role, resource, action) triple.
type permission struct {
	Role     domain.Role
	Resource Resource
	Action   Action
}

// grants is the closed enumeration of every permitted triple. An
// unknown combination is a startup error via ValidateGrants, never a
// silent false at request time.
var grants = []permission{
	{domain.RoleAdmin, ResourceOrders, ActionCreate},
	{domain.RoleAdmin, ResourceOrders, ActionRead},
	{domain.RoleAdmin, ResourceOrders, ActionUpdate},
	{domain.RoleAdmin, ResourceOrders, ActionDelete},
	{domain.RoleAdmin, ResourceOrders, ActionModifyStatus},
	{domain.RoleAdmin, ResourceMenu, ActionRead},
	{domain.RoleAdmin, ResourceMenu, ActionUpdate},
	{domain.RoleAdmin, ResourceMenu, ActionModifyPrices},
	{domain.RoleAdmin, ResourceSessions, ActionRead},
	{domain.RoleAdmin, ResourceSessions, ActionNotify},
	{domain.RoleAdmin, ResourceReports, ActionRead},

	{domain.RolePersonal, ResourceOrders, ActionCreate},
	{domain.RolePersonal, ResourceOrders, ActionRead},
	{domain.RolePersonal, ResourceOrders, ActionUpdate},
	{domain.RolePersonal, ResourceOrders, ActionModifyStatus},
	{domain.RolePersonal, ResourceMenu, ActionRead},
	{domain.RolePersonal, ResourceSessions, ActionRead},
	{domain.RolePersonal, ResourceSessions, ActionNotify},
}

var validResources = map[Resource]bool{
	ResourceOrders:   true,
	ResourceMenu:     true,
	ResourceSessions: true,
	ResourceReports:  true,
}

var validActions = map[Action]bool{
	ActionCreate:       true,
	ActionRead:         true,
	ActionUpdate:       true,
	ActionDelete:       true,
	ActionModifyStatus: true,
	ActionModifyPrices: true,
	ActionNotify:       true,
}

var grantIndex map[permission]bool

func init() {
	grantIndex = make(map[permission]bool, len(grants))
	for _, g := range grants {
		grantIndex[g] = true
	}
}

// Allowed reports whether the role may perform the action on the
// resource.
func Allowed(role domain.Role, resource Resource, action Action) bool {
	return grantIndex[permission{role, resource, action}]
}

// Require returns ErrPermissionDenied unless the role may perform the
// action on the resource.
func Require(role domain.Role, resource Resource, action Action) error {
	if !Allowed(role, resource, action) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// ValidateGrants checks every triple in the grant table against the
// closed role/resource/action enumerations. Called once at startup so a
// typo in the table aborts the process instead of denying requests
// silently.
func ValidateGrants() error {
	for _, g := range grants {
		if !domain.ValidRoles[g.Role] {
			return fmt.Errorf("permission table: unknown role %q", g.Role)
		}
		if !validResources[g.Resource] {
			return fmt.Errorf("permission table: unknown resource %q", g.Resource)
		}
		if !validActions[g.Action] {
			return fmt.Errorf("permission table: unknown action %q", g.Action)
		}
	}
	return nil
}
