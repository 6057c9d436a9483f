package service

import (
	"time"

	"comanda/internal/domain"
)

// OrderPayload is the wire shape of an order, shared by REST responses
// and realtime events so every consumer sees the same field set.
// Monetary fields are in soles. The mapping from domain fields is
// explicit and exhaustive; nothing is translated by convention.
type OrderPayload struct {
	ID                   string        `json:"id"`
	Channel              string        `json:"channel"`
	ManagerName          string        `json:"manager_name"`
	Items                []ItemPayload `json:"items"`
	Total                float64       `json:"total"`
	PaymentMethod        string        `json:"payment_method"`
	PaymentStatus        string        `json:"payment_status"`
	CashReceived         float64       `json:"cash_received"`
	YapeAmount           float64       `json:"yape_amount"`
	CardAmount           float64       `json:"card_amount"`
	Status               string        `json:"status"`
	CanModify            bool          `json:"can_modify"`
	CustomerName         string        `json:"customer_name"`
	CustomerPhone        string        `json:"customer_phone,omitempty"`
	DeliveryAddress      string        `json:"delivery_address,omitempty"`
	TableNumber          string        `json:"table_number,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	CreatedAt            string        `json:"created_at"`
	PrepStartTime        *string       `json:"prep_start_time"`
	ReadyTime            *string       `json:"ready_time"`
	CompletedTime        *string       `json:"completed_time"`
	PaymentCompletedTime *string       `json:"payment_completed_time"`
	Version              uint64        `json:"version"`
}

// ItemPayload is the wire shape of one order line.
type ItemPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Category string  `json:"category"`
}

// statusChangedPayload carries a status-change event with its actor.
type statusChangedPayload struct {
	Order     OrderPayload `json:"order"`
	NewStatus string       `json:"new_status"`
	ChangedBy string       `json:"changed_by,omitempty"`
}

// TenderResultPayload is returned to the caller of a payment
// application. Change is informational output, never stored.
type TenderResultPayload struct {
	Order         OrderPayload `json:"order"`
	Change        float64      `json:"change"`
	PaymentStatus string       `json:"payment_status"`
	PaymentMethod string       `json:"payment_method"`
}

// BuildOrderPayload converts a domain order snapshot to its wire shape.
func BuildOrderPayload(o *domain.Order) OrderPayload {
	items := make([]ItemPayload, len(o.Items))
	for i, it := range o.Items {
		items[i] = ItemPayload{
			ID:       it.ID,
			Name:     it.Name,
			Price:    domain.CentsToSoles(it.Price),
			Quantity: it.Quantity,
			Category: it.Category,
		}
	}

	return OrderPayload{
		ID:                   o.ID,
		Channel:              string(o.Channel),
		ManagerName:          o.ManagerName,
		Items:                items,
		Total:                domain.CentsToSoles(o.Total),
		PaymentMethod:        string(o.PaymentMethod),
		PaymentStatus:        string(o.PaymentStatus),
		CashReceived:         domain.CentsToSoles(o.CashReceived),
		YapeAmount:           domain.CentsToSoles(o.YapeAmount),
		CardAmount:           domain.CentsToSoles(o.CardAmount),
		Status:               string(o.Status),
		CanModify:            o.CanModify,
		CustomerName:         o.CustomerName,
		CustomerPhone:        o.CustomerPhone,
		DeliveryAddress:      o.DeliveryAddress,
		TableNumber:          o.TableNumber,
		Notes:                o.Notes,
		CreatedAt:            formatTime(o.CreatedAt),
		PrepStartTime:        formatTimePtr(o.PrepStartTime),
		ReadyTime:            formatTimePtr(o.ReadyTime),
		CompletedTime:        formatTimePtr(o.CompletedTime),
		PaymentCompletedTime: formatTimePtr(o.PaymentCompletedTime),
		Version:              o.Version,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
