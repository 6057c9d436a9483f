package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"comanda/internal/auth"
	"comanda/internal/domain"
	"comanda/internal/realtime"
	"comanda/internal/service"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketHandler upgrades websocket connections and dispatches inbound
// client events to the order service and session tracker.
type SocketHandler struct {
	orderSvc *service.OrderService
	tracker  *realtime.Tracker
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewSocketHandler creates a new SocketHandler.
func NewSocketHandler(
	orderSvc *service.OrderService,
	tracker *realtime.Tracker,
	verifier *auth.Verifier,
	logger *slog.Logger,
) *SocketHandler {
	return &SocketHandler{
		orderSvc: orderSvc,
		tracker:  tracker,
		verifier: verifier,
		logger:   logger,
	}
}

// Serve handles GET /ws. The bearer token travels in the token query
// parameter because browsers cannot set headers on an upgrade request.
// On success the session joins all_users plus its role room and receives
// a connection_confirmed banner before any broadcast.
func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Token is missing, malformed, or expired")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sess, sub := h.tracker.Connect(id.UserID, id.UserName, id.Role, time.Now())

	confirmed, _ := json.Marshal(map[string]any{
		"type":       "connection_confirmed",
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"role":       string(sess.Role),
	})
	sub.Enqueue(confirmed)

	conn := realtime.NewConn(ws, sub,
		func(req realtime.Request) realtime.Ack {
			return h.dispatch(sess, id, req)
		},
		func() {
			h.tracker.Disconnect(sess.ID, time.Now())
		},
		h.logger,
	)
	conn.Run()
}

// createOrderEvent is the data shape of a create_order client event.
type createOrderEvent struct {
	Channel         string        `json:"channel"`
	ManagerName     string        `json:"manager_name"`
	Items           []itemRequest `json:"items"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	DeliveryAddress string        `json:"delivery_address"`
	TableNumber     string        `json:"table_number"`
	Notes           string        `json:"notes"`
}

// orderItemsEvent is the data shape of an add_items client event.
type orderItemsEvent struct {
	OrderID string        `json:"order_id"`
	Items   []itemRequest `json:"items"`
}

// removeItemEvent is the data shape of a remove_item client event.
type removeItemEvent struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
}

// paymentEvent is the data shape of an apply_payment client event. The
// enclosing request's request_id is the idempotency key.
type paymentEvent struct {
	OrderID string  `json:"order_id"`
	Cash    float64 `json:"cash"`
	Yape    float64 `json:"yape"`
	Card    float64 `json:"card"`
}

// statusEvent is the data shape of a change_status or cancel_order
// client event.
type statusEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// listOrdersEvent is the data shape of a get_orders client event.
type listOrdersEvent struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

// notificationEvent is the data shape of a send_notification client event.
type notificationEvent struct {
	TargetRole string `json:"target_role"`
	Message    string `json:"message"`
}

// menuPriceEvent is the data shape of an update_menu_price client event.
type menuPriceEvent struct {
	ItemID string  `json:"item_id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// dispatch routes one inbound client event. Each branch checks the
// session's permission before touching the service; results and errors
// travel back as the per-request ack while broadcasts fan out through
// the hub.
func (h *SocketHandler) dispatch(sess *domain.Session, id auth.Identity, req realtime.Request) realtime.Ack {
	switch req.Type {
	case "heartbeat":
		if err := h.tracker.Heartbeat(sess.ID, time.Now()); err != nil {
			return failAck("heartbeat_ack", req.RequestID, err)
		}
		return realtime.Ack{Type: "heartbeat_ack", RequestID: req.RequestID, Success: true}

	case "create_order":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionCreate); err != nil {
			return failAck("order_created", req.RequestID, err)
		}
		var ev createOrderEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_created", req.RequestID)
		}
		if ev.ManagerName == "" {
			ev.ManagerName = id.UserName
		}
		order, err := h.orderSvc.CreateOrder(service.CreateOrderRequest{
			Channel:         domain.Channel(ev.Channel),
			ManagerName:     ev.ManagerName,
			Items:           buildItemInputs(ev.Items),
			CustomerName:    ev.CustomerName,
			CustomerPhone:   ev.CustomerPhone,
			DeliveryAddress: ev.DeliveryAddress,
			TableNumber:     ev.TableNumber,
			Notes:           ev.Notes,
		})
		if err != nil {
			return failAck("order_created", req.RequestID, err)
		}
		return okAck("order_created", req.RequestID, service.BuildOrderPayload(order))

	case "get_orders":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionRead); err != nil {
			return failAck("orders", req.RequestID, err)
		}
		var ev listOrdersEvent
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &ev); err != nil {
				return badDataAck("orders", req.RequestID)
			}
		}
		var status *domain.OrderStatus
		if ev.Status != "" {
			v := domain.OrderStatus(ev.Status)
			status = &v
		}
		var channel *domain.Channel
		if ev.Channel != "" {
			v := domain.Channel(ev.Channel)
			channel = &v
		}
		orders, err := h.orderSvc.ListOrders(status, channel)
		if err != nil {
			return failAck("orders", req.RequestID, err)
		}
		payloads := make([]service.OrderPayload, len(orders))
		for i, o := range orders {
			payloads[i] = service.BuildOrderPayload(o)
		}
		return okAck("orders", req.RequestID, payloads)

	case "add_items":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
			return failAck("order_updated", req.RequestID, err)
		}
		var ev orderItemsEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_updated", req.RequestID)
		}
		order, err := h.orderSvc.AddItems(ev.OrderID, buildItemInputs(ev.Items))
		if err != nil {
			return failAck("order_updated", req.RequestID, err)
		}
		return okAck("order_updated", req.RequestID, service.BuildOrderPayload(order))

	case "remove_item":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
			return failAck("order_updated", req.RequestID, err)
		}
		var ev removeItemEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_updated", req.RequestID)
		}
		order, err := h.orderSvc.RemoveItem(ev.OrderID, ev.ItemID)
		if err != nil {
			return failAck("order_updated", req.RequestID, err)
		}
		return okAck("order_updated", req.RequestID, service.BuildOrderPayload(order))

	case "apply_payment":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
			return failAck("payment_applied", req.RequestID, err)
		}
		var ev paymentEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("payment_applied", req.RequestID)
		}
		order, receipt, err := h.orderSvc.ApplyTender(ev.OrderID, service.TenderRequest{
			RequestID: req.RequestID,
			Cash:      ev.Cash,
			Yape:      ev.Yape,
			Card:      ev.Card,
		})
		if err != nil {
			return failAck("payment_applied", req.RequestID, err)
		}
		return okAck("payment_applied", req.RequestID, service.TenderResultPayload{
			Order:         service.BuildOrderPayload(order),
			Change:        domain.CentsToSoles(receipt.Change),
			PaymentStatus: string(receipt.PaymentStatus),
			PaymentMethod: string(receipt.PaymentMethod),
		})
	}
	return h.dispatchAdmin(id, req)
}

// dispatchAdmin continues the event switch for status, session, and
// menu events.
func (h *SocketHandler) dispatchAdmin(id auth.Identity, req realtime.Request) realtime.Ack {
	switch req.Type {
	case "change_status":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionModifyStatus); err != nil {
			return failAck("order_status_changed", req.RequestID, err)
		}
		var ev statusEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_status_changed", req.RequestID)
		}
		order, err := h.orderSvc.ChangeStatus(ev.OrderID, domain.OrderStatus(ev.Status), id.UserName)
		if err != nil {
			return failAck("order_status_changed", req.RequestID, err)
		}
		return okAck("order_status_changed", req.RequestID, service.BuildOrderPayload(order))

	case "cancel_order":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionModifyStatus); err != nil {
			return failAck("order_status_changed", req.RequestID, err)
		}
		var ev statusEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_status_changed", req.RequestID)
		}
		order, err := h.orderSvc.CancelOrder(ev.OrderID, id.UserName)
		if err != nil {
			return failAck("order_status_changed", req.RequestID, err)
		}
		return okAck("order_status_changed", req.RequestID, service.BuildOrderPayload(order))

	case "delete_order":
		if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionDelete); err != nil {
			return failAck("order_deleted", req.RequestID, err)
		}
		var ev statusEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("order_deleted", req.RequestID)
		}
		if err := h.orderSvc.DeleteOrder(ev.OrderID); err != nil {
			return failAck("order_deleted", req.RequestID, err)
		}
		return okAck("order_deleted", req.RequestID, map[string]string{"order_id": ev.OrderID})

	case "get_online_users":
		if err := auth.Require(id.Role, auth.ResourceSessions, auth.ActionRead); err != nil {
			return failAck("users_online", req.RequestID, err)
		}
		return okAck("users_online", req.RequestID, h.tracker.OnlineUsers())

	case "send_notification":
		if err := auth.Require(id.Role, auth.ResourceSessions, auth.ActionNotify); err != nil {
			return failAck("notification_sent", req.RequestID, err)
		}
		var ev notificationEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("notification_sent", req.RequestID)
		}
		if err := h.orderSvc.PublishNotification(ev.TargetRole, ev.Message, id.UserName, time.Now()); err != nil {
			return failAck("notification_sent", req.RequestID, err)
		}
		return realtime.Ack{Type: "notification_sent", RequestID: req.RequestID, Success: true}

	case "update_menu_price":
		if err := auth.Require(id.Role, auth.ResourceMenu, auth.ActionModifyPrices); err != nil {
			return failAck("menu_price_changed", req.RequestID, err)
		}
		var ev menuPriceEvent
		if err := json.Unmarshal(req.Data, &ev); err != nil {
			return badDataAck("menu_price_changed", req.RequestID)
		}
		change := service.MenuPriceChange{
			ItemID:    ev.ItemID,
			Name:      ev.Name,
			Price:     ev.Price,
			ChangedBy: id.UserName,
		}
		if err := h.orderSvc.PublishMenuPriceChange(change); err != nil {
			return failAck("menu_price_changed", req.RequestID, err)
		}
		return okAck("menu_price_changed", req.RequestID, change)
	}

	return realtime.Ack{
		Type:      "ack",
		RequestID: req.RequestID,
		Success:   false,
		Message:   "unknown event type: " + req.Type,
	}
}

func okAck(ackType, requestID string, data any) realtime.Ack {
	return realtime.Ack{Type: ackType, RequestID: requestID, Success: true, Data: data}
}

func failAck(ackType, requestID string, err error) realtime.Ack {
	msg := err.Error()
	if !isClientError(err) {
		msg = "An unexpected error occurred"
	}
	return realtime.Ack{Type: ackType, RequestID: requestID, Success: false, Message: msg}
}

func badDataAck(ackType, requestID string) realtime.Ack {
	return realtime.Ack{Type: ackType, RequestID: requestID, Success: false, Message: "event data must be valid JSON"}
}

// isClientError reports whether the error text is safe to echo to the
// client. Internal failures are masked.
func isClientError(err error) bool {
	var validationErr *domain.ValidationError
	var violations domain.Violations
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &validationErr) || errors.As(err, &violations) || errors.As(err, &transitionErr) {
		return true
	}
	return errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrOrderTerminal) ||
		errors.Is(err, domain.ErrOrderLocked) ||
		errors.Is(err, domain.ErrConcurrencyConflict) ||
		errors.Is(err, domain.ErrPermissionDenied)
}
