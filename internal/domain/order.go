package domain

import "time"

// Channel is the sales context of an order. It is fixed at creation;
// moving an order between channels is not supported.
type Channel string

const (
	ChannelLocal    Channel = "local"
	ChannelDelivery Channel = "delivery"
	ChannelTakeaway Channel = "takeaway"
)

// PaymentMethod classifies how an order has been paid so far. It is
// derived from the tender accumulators, never set directly.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodYape    PaymentMethod = "yape"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodMixed   PaymentMethod = "mixed"
	PaymentMethodPending PaymentMethod = "pending"
)

// PaymentStatus is a pure function of the tendered total and the order
// total: paid when tendered >= total, partial when 0 < tendered < total.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a single line on an order. Price is in céntimos.
type OrderItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int64
	Category string
}

// Order is the central entity: a restaurant order with its items,
// accumulated tenders, and lifecycle state. All monetary fields are in
// céntimos (PEN).
type Order struct {
	ID          string
	Channel     Channel
	ManagerName string
	Items       []OrderItem
	Total       int64

	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	CashReceived  int64
	YapeAmount    int64
	CardAmount    int64

	Status    OrderStatus
	CanModify bool

	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	TableNumber     string
	Notes           string

	CreatedAt            time.Time
	PrepStartTime        *time.Time
	ReadyTime            *time.Time
	CompletedTime        *time.Time
	PaymentCompletedTime *time.Time

	// Version counts committed mutations. The store bumps it on every
	// commit; readers use it to detect staleness.
	Version uint64
}

// RecomputeTotal sets Total to the sum of price × quantity over Items.
// Must run inside the same critical section as the item mutation so no
// reader ever observes items and total in disagreement.
func (o *Order) RecomputeTotal() {
	var total int64
	for _, it := range o.Items {
		total += it.Price * it.Quantity
	}
	o.Total = total
}

// TenderedTotal returns the sum of all tender accumulators.
func (o *Order) TenderedTotal() int64 {
	return o.CashReceived + o.YapeAmount + o.CardAmount
}

// IsTerminal reports whether the order accepts no further mutations.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// DerivePaymentStatus computes the payment status from the tendered
// amount and the order total.
func DerivePaymentStatus(tendered, total int64) PaymentStatus {
	switch {
	case total > 0 && tendered >= total:
		return PaymentStatusPaid
	case tendered > 0:
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// DerivePaymentMethod classifies the payment method from the tender
// accumulators: the single instrument that received money, mixed when
// more than one did, pending when none has.
func DerivePaymentMethod(cash, yape, card int64) PaymentMethod {
	instruments := 0
	method := PaymentMethodPending
	if cash > 0 {
		instruments++
		method = PaymentMethodCash
	}
	if yape > 0 {
		instruments++
		method = PaymentMethodYape
	}
	if card > 0 {
		instruments++
		method = PaymentMethodCard
	}
	if instruments > 1 {
		return PaymentMethodMixed
	}
	return method
}

// Clone returns a deep copy of the order. The store hands out clones so
// readers never alias committed state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	c.PrepStartTime = cloneTime(o.PrepStartTime)
	c.ReadyTime = cloneTime(o.ReadyTime)
	c.CompletedTime = cloneTime(o.CompletedTime)
	c.PaymentCompletedTime = cloneTime(o.PaymentCompletedTime)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
