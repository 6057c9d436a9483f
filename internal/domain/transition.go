package domain

import "time"

// transitions encodes the order lifecycle: pending → preparing → ready →
// completed, with cancelled reachable from every non-terminal state.
// Nothing leaves completed or cancelled.
var transitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusPreparing: true,
		OrderStatusCancelled: true,
	},
	OrderStatusPreparing: {
		OrderStatusReady:     true,
		OrderStatusCancelled: true,
	},
	OrderStatusReady: {
		OrderStatusCompleted: true,
		OrderStatusCancelled: true,
	},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// ValidOrderStatuses lists all order status values for request validation.
var ValidOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending:   true,
	OrderStatusPreparing: true,
	OrderStatusReady:     true,
	OrderStatusCompleted: true,
	OrderStatusCancelled: true,
}

// CanTransition reports whether the lifecycle permits from → to.
func CanTransition(from, to OrderStatus) bool {
	return transitions[from][to]
}

// Transition moves the order to the requested status, stamping the
// corresponding timestamp at most once. Out-of-order requests are
// rejected with InvalidTransitionError and the order is left unchanged.
// Cancellation retains items and tenders for audit.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}

	o.Status = to
	switch to {
	case OrderStatusPreparing:
		if o.PrepStartTime == nil {
			t := now
			o.PrepStartTime = &t
		}
	case OrderStatusReady:
		if o.ReadyTime == nil {
			t := now
			o.ReadyTime = &t
		}
	case OrderStatusCompleted:
		if o.CompletedTime == nil {
			t := now
			o.CompletedTime = &t
		}
	}
	if o.IsTerminal() {
		o.CanModify = false
	}
	return nil
}
