package service

import (
	"strings"
	"time"

	"comanda/internal/domain"
)

// MenuPriceChange is an administrative menu event. The menu catalog
// itself lives with an external collaborator; the core only relays the
// change to the role rooms so admin terminals refresh their price
// boards.
type MenuPriceChange struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangedBy string  `json:"changed_by"`
}

// PublishMenuPriceChange validates the event shape and fans it out to
// every role room. It is role-scoped: all_users never sees it.
func (s *OrderService) PublishMenuPriceChange(change MenuPriceChange) error {
	if strings.TrimSpace(change.ItemID) == "" {
		return &domain.ValidationError{Field: "item_id", Message: "item id is required"}
	}
	if _, err := domain.SolesToCents(change.Price); err != nil {
		return &domain.ValidationError{Field: "price", Message: err.Error()}
	}
	if change.Price < 0 {
		return &domain.ValidationError{Field: "price", Message: "price must not be negative"}
	}

	if s.sink == nil {
		return nil
	}
	now := s.now()
	for role := range domain.ValidRoles {
		s.sink.Publish(domain.Event{
			Type:      domain.EventMenuPriceChanged,
			Room:      domain.RoomForRole(role),
			Timestamp: now,
			Data:      change,
		})
	}
	return nil
}

// PublishNotification relays a staff notification to a role room, or to
// everyone when no role is given.
func (s *OrderService) PublishNotification(targetRole, message, from string, now time.Time) error {
	if strings.TrimSpace(message) == "" {
		return &domain.ValidationError{Field: "message", Message: "message is required"}
	}

	room := domain.RoomAllUsers
	if targetRole != "" {
		role := domain.Role(targetRole)
		if !domain.ValidRoles[role] {
			return &domain.ValidationError{Field: "target_role", Message: "unknown role: " + targetRole}
		}
		room = domain.RoomForRole(role)
	}

	if s.sink != nil {
		s.sink.Publish(domain.Event{
			Type:      domain.EventNotification,
			Room:      room,
			Timestamp: now,
			Data: map[string]string{
				"message": message,
				"from":    from,
			},
		})
	}
	return nil
}
