package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"comanda/internal/domain"
	"comanda/internal/metrics"
	"comanda/internal/repository"
	"comanda/internal/store"

	"github.com/google/uuid"
)

// EventSink receives committed-mutation events. The realtime hub and
// the optional message-queue bridge both implement it; fan-out is
// asynchronous relative to the mutation's caller.
type EventSink interface {
	Publish(ev domain.Event)
}

// Sinks fans one event out to several sinks.
type Sinks []EventSink

func (s Sinks) Publish(ev domain.Event) {
	for _, sink := range s {
		sink.Publish(ev)
	}
}

// Persister receives committed snapshots for write-behind persistence.
type Persister interface {
	Enqueue(o *domain.Order)
}

// ItemInput is one requested order line. Price is in soles; the service
// converts to céntimos at this boundary.
type ItemInput struct {
	Name     string
	Price    float64
	Quantity int64
	Category string
}

// CreateOrderRequest is the input for order creation.
type CreateOrderRequest struct {
	Channel         domain.Channel
	ManagerName     string
	Items           []ItemInput
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	TableNumber     string
	Notes           string
}

// OrderService owns every order mutation: creation, item changes,
// payment application, and status transitions all pass through here, so
// validation and broadcast follow a single path regardless of whether
// the request arrived over REST or the websocket.
type OrderService struct {
	orders    *store.OrderStore
	sink      EventSink
	persister Persister
	repo      repository.Orders
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates an OrderService. sink, persister, repo, and
// collector may be nil in tests.
func NewOrderService(
	orders *store.OrderStore,
	sink EventSink,
	persister Persister,
	repo repository.Orders,
	collector *metrics.Collector,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		sink:      sink,
		persister: persister,
		repo:      repo,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder validates the request against the channel policy, builds
// the order, and commits it. The local-channel customer-name default is
// applied before validation.
func (s *OrderService) CreateOrder(req CreateOrderRequest) (*domain.Order, error) {
	if !domain.ValidChannels[req.Channel] {
		return nil, &domain.ValidationError{
			Field:   domain.FieldChannel,
			Message: "channel must be one of: local, delivery, takeaway",
		}
	}
	if strings.TrimSpace(req.ManagerName) == "" {
		return nil, &domain.ValidationError{Field: "manager_name", Message: "manager name is required"}
	}
	if len(req.Items) == 0 {
		return nil, &domain.ValidationError{Field: domain.FieldItems, Message: "order must have at least one item"}
	}

	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &domain.Order{
		ID:              uuid.New().String(),
		Channel:         req.Channel,
		ManagerName:     strings.TrimSpace(req.ManagerName),
		Items:           items,
		PaymentMethod:   domain.PaymentMethodPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		CanModify:       true,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		TableNumber:     strings.TrimSpace(req.TableNumber),
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
	}
	o.RecomputeTotal()
	domain.ApplyLocalNameDefault(o)

	if iv := domain.ValidateItems(o.Items); len(iv) > 0 {
		return nil, iv
	}
	// Individual courtesy items may be free, but an order that sums to
	// zero could never settle: paid requires a positive total.
	if o.Total == 0 {
		return nil, &domain.ValidationError{Field: domain.FieldItems, Message: "order total must be positive"}
	}
	if cv := domain.ValidateChannelFields(o); len(cv) > 0 {
		return nil, cv
	}

	if err := s.orders.Create(o); err != nil {
		return nil, err
	}

	snap := o.Clone()
	s.committed(snap, domain.EventOrderCreated, now)
	if s.collector != nil {
		s.collector.OrderCreated(string(o.Channel))
	}
	return snap, nil
}

// AddItems appends items to a still-modifiable order and recomputes the
// total atomically with the append.
func (s *OrderService) AddItems(orderID string, inputs []ItemInput) (*domain.Order, error) {
	if len(inputs) == 0 {
		return nil, &domain.ValidationError{Field: domain.FieldItems, Message: "no items to add"}
	}
	items, err := buildItems(inputs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snap, err := s.orders.Update(orderID, func(tx *store.Txn) error {
		o := tx.Order
		if o.IsTerminal() {
			return domain.ErrOrderTerminal
		}
		if !o.CanModify {
			return domain.ErrOrderLocked
		}
		o.Items = append(o.Items, items...)
		o.RecomputeTotal()
		o.PaymentStatus = domain.DerivePaymentStatus(o.TenderedTotal(), o.Total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(snap, domain.EventOrderUpdated, now)
	return snap, nil
}

// RemoveItem deletes one item and recomputes the total atomically. An
// order emptied of items is not cancelled; it simply cannot advance
// status until items are added back.
func (s *OrderService) RemoveItem(orderID, itemID string) (*domain.Order, error) {
	now := s.now()
	snap, err := s.orders.Update(orderID, func(tx *store.Txn) error {
		o := tx.Order
		if o.IsTerminal() {
			return domain.ErrOrderTerminal
		}
		if !o.CanModify {
			return domain.ErrOrderLocked
		}

		kept := o.Items[:0]
		found := false
		for _, it := range o.Items {
			if it.ID == itemID {
				found = true
				continue
			}
			kept = append(kept, it)
		}
		if !found {
			return domain.ErrItemNotFound
		}
		o.Items = kept
		o.RecomputeTotal()
		if o.Total == 0 && o.TenderedTotal() > 0 {
			return &domain.ValidationError{
				Field:   domain.FieldItems,
				Message: "an order with applied payments must keep a positive total",
			}
		}
		o.PaymentStatus = domain.DerivePaymentStatus(o.TenderedTotal(), o.Total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(snap, domain.EventOrderUpdated, now)
	return snap, nil
}

// ChangeStatus applies one lifecycle transition requested by staff.
// Status-advancing transitions are rejected on an order with no items.
func (s *OrderService) ChangeStatus(orderID string, to domain.OrderStatus, changedBy string) (*domain.Order, error) {
	if !domain.ValidOrderStatuses[to] {
		return nil, &domain.ValidationError{
			Field:   "status",
			Message: "status must be one of: pending, preparing, ready, completed, cancelled",
		}
	}

	now := s.now()
	var createdAt time.Time
	snap, err := s.orders.Update(orderID, func(tx *store.Txn) error {
		o := tx.Order
		if o.IsTerminal() {
			return domain.ErrOrderTerminal
		}
		if to != domain.OrderStatusCancelled && len(o.Items) == 0 {
			return &domain.ValidationError{
				Field:   domain.FieldItems,
				Message: "order has no items; add items before advancing status",
			}
		}
		createdAt = o.CreatedAt
		return o.Transition(to, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChanged(snap, changedBy, now)
	s.persist(snap)
	if s.collector != nil {
		s.collector.StatusChanged(string(to), snap.IsTerminal())
		if to == domain.OrderStatusCompleted {
			s.collector.OrderCompleted(string(snap.Channel), now.Sub(createdAt).Seconds())
		}
	}
	return snap, nil
}

// CancelOrder cancels a non-terminal order. Accumulated tenders are
// retained for audit; refunds are out of scope.
func (s *OrderService) CancelOrder(orderID, changedBy string) (*domain.Order, error) {
	return s.ChangeStatus(orderID, domain.OrderStatusCancelled, changedBy)
}

// DeleteOrder removes an order entirely (admin operation) and announces
// the deletion.
func (s *OrderService) DeleteOrder(orderID string) error {
	snap, err := s.orders.Delete(orderID)
	if err != nil {
		return err
	}

	now := s.now()
	if s.sink != nil {
		s.sink.Publish(domain.Event{
			Type:      domain.EventOrderDeleted,
			Room:      domain.RoomAllUsers,
			Timestamp: now,
			Data:      map[string]string{"order_id": snap.ID},
		})
	}
	if s.repo != nil {
		go func() {
			if err := s.repo.Delete(context.Background(), snap.ID); err != nil {
				s.logger.Error("order delete persist failed",
					slog.String("order_id", snap.ID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	return nil
}

// GetOrder returns a snapshot of one order.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orders.Get(orderID)
}

// ListOrders returns snapshots of all orders, newest first, optionally
// filtered by status and channel. Repeated calls with no intervening
// mutation return identical snapshots.
func (s *OrderService) ListOrders(status *domain.OrderStatus, channel *domain.Channel) ([]*domain.Order, error) {
	if status != nil && !domain.ValidOrderStatuses[*status] {
		return nil, &domain.ValidationError{
			Field:   "status",
			Message: "status must be one of: pending, preparing, ready, completed, cancelled",
		}
	}
	if channel != nil && !domain.ValidChannels[*channel] {
		return nil, &domain.ValidationError{
			Field:   domain.FieldChannel,
			Message: "channel must be one of: local, delivery, takeaway",
		}
	}
	return s.orders.List(status, channel), nil
}

// committed publishes the post-commit event and enqueues persistence.
// Both happen after the per-order lock is released; the caller's ack
// does not wait for fan-out.
func (s *OrderService) committed(snap *domain.Order, ev domain.EventType, now time.Time) {
	if s.sink != nil {
		s.sink.Publish(domain.Event{
			Type:      ev,
			Room:      domain.RoomAllUsers,
			Timestamp: now,
			Data:      BuildOrderPayload(snap),
		})
	}
	s.persist(snap)
}

func (s *OrderService) publishStatusChanged(snap *domain.Order, changedBy string, now time.Time) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(domain.Event{
		Type:      domain.EventOrderStatusChanged,
		Room:      domain.RoomAllUsers,
		Timestamp: now,
		Data: statusChangedPayload{
			Order:     BuildOrderPayload(snap),
			NewStatus: string(snap.Status),
			ChangedBy: changedBy,
		},
	})
}

func (s *OrderService) persist(snap *domain.Order) {
	if s.persister != nil {
		s.persister.Enqueue(snap)
	}
}

// buildItems converts item inputs to domain items, assigning ids and
// converting prices to céntimos.
func buildItems(inputs []ItemInput) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, len(inputs))
	for i, in := range inputs {
		cents, err := domain.SolesToCents(in.Price)
		if err != nil {
			return nil, &domain.ValidationError{Field: domain.FieldItems, Message: err.Error()}
		}
		items[i] = domain.OrderItem{
			ID:       uuid.New().String(),
			Name:     strings.TrimSpace(in.Name),
			Price:    cents,
			Quantity: in.Quantity,
			Category: strings.TrimSpace(in.Category),
		}
	}
	return items, nil
}
