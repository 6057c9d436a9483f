package handler

import (
	"errors"
	"net/http"
	"time"

	"comanda/internal/auth"
	"comanda/internal/domain"
	"comanda/internal/service"

	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// itemRequest is one order line in a create or add-items request.
// Price is in soles.
type itemRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Category string  `json:"category"`
}

// createOrderRequest is the JSON request body for POST /orders. The
// manager name defaults to the authenticated caller when omitted.
type createOrderRequest struct {
	Channel         string        `json:"channel"`
	ManagerName     string        `json:"manager_name"`
	Items           []itemRequest `json:"items"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	DeliveryAddress string        `json:"delivery_address"`
	TableNumber     string        `json:"table_number"`
	Notes           string        `json:"notes"`
}

// addItemsRequest is the JSON request body for POST /orders/{order_id}/items.
type addItemsRequest struct {
	Items []itemRequest `json:"items"`
}

// paymentRequest is the JSON request body for POST /orders/{order_id}/payments.
// Amounts are in soles; request_id deduplicates retries.
type paymentRequest struct {
	RequestID string  `json:"request_id"`
	Cash      float64 `json:"cash"`
	Yape      float64 `json:"yape"`
	Card      float64 `json:"card"`
}

// changeStatusRequest is the JSON request body for POST /orders/{order_id}/status.
type changeStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionCreate); err != nil {
		mapOrderError(w, err)
		return
	}

	var req createOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.ManagerName == "" {
		req.ManagerName = id.UserName
	}

	order, err := h.orderSvc.CreateOrder(service.CreateOrderRequest{
		Channel:         domain.Channel(req.Channel),
		ManagerName:     req.ManagerName,
		Items:           buildItemInputs(req.Items),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		TableNumber:     req.TableNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, service.BuildOrderPayload(order))
}

// ListOrders handles GET /orders. Optional status and channel query
// parameters filter the result.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionRead); err != nil {
		mapOrderError(w, err)
		return
	}

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		v := domain.OrderStatus(s)
		status = &v
	}
	var channel *domain.Channel
	if c := r.URL.Query().Get("channel"); c != "" {
		v := domain.Channel(c)
		channel = &v
	}

	orders, err := h.orderSvc.ListOrders(status, channel)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	payloads := make([]service.OrderPayload, len(orders))
	for i, o := range orders {
		payloads[i] = service.BuildOrderPayload(o)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": payloads})
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionRead); err != nil {
		mapOrderError(w, err)
		return
	}

	order, err := h.orderSvc.GetOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.BuildOrderPayload(order))
}

// DeleteOrder handles DELETE /orders/{order_id}. Admin only.
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionDelete); err != nil {
		mapOrderError(w, err)
		return
	}

	if err := h.orderSvc.DeleteOrder(chi.URLParam(r, "order_id")); err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddItems handles POST /orders/{order_id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
		mapOrderError(w, err)
		return
	}

	var req addItemsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.AddItems(chi.URLParam(r, "order_id"), buildItemInputs(req.Items))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.BuildOrderPayload(order))
}

// RemoveItem handles DELETE /orders/{order_id}/items/{item_id}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
		mapOrderError(w, err)
		return
	}

	order, err := h.orderSvc.RemoveItem(chi.URLParam(r, "order_id"), chi.URLParam(r, "item_id"))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.BuildOrderPayload(order))
}

// ApplyPayment handles POST /orders/{order_id}/payments.
func (h *OrderHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionUpdate); err != nil {
		mapOrderError(w, err)
		return
	}

	var req paymentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, receipt, err := h.orderSvc.ApplyTender(chi.URLParam(r, "order_id"), service.TenderRequest{
		RequestID: req.RequestID,
		Cash:      req.Cash,
		Yape:      req.Yape,
		Card:      req.Card,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.TenderResultPayload{
		Order:         service.BuildOrderPayload(order),
		Change:        domain.CentsToSoles(receipt.Change),
		PaymentStatus: string(receipt.PaymentStatus),
		PaymentMethod: string(receipt.PaymentMethod),
	})
}

// ChangeStatus handles POST /orders/{order_id}/status.
func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceOrders, auth.ActionModifyStatus); err != nil {
		mapOrderError(w, err)
		return
	}

	var req changeStatusRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.ChangeStatus(chi.URLParam(r, "order_id"), domain.OrderStatus(req.Status), id.UserName)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, service.BuildOrderPayload(order))
}

// DailyStats handles GET /stats/daily. Admin only. An optional date
// query parameter (YYYY-MM-DD) selects the day; it defaults to today.
func (h *OrderHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := auth.Require(id.Role, auth.ResourceReports, auth.ActionRead); err != nil {
		mapOrderError(w, err)
		return
	}

	ref := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.ParseInLocation("2006-01-02", d, ref.Location())
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "date must be formatted as YYYY-MM-DD")
			return
		}
		ref = t
	}

	WriteJSON(w, http.StatusOK, h.orderSvc.DailyStatsFor(ref))
}

// buildItemInputs converts request items to service inputs.
func buildItemInputs(items []itemRequest) []service.ItemInput {
	inputs := make([]service.ItemInput, len(items))
	for i, it := range items {
		inputs[i] = service.ItemInput{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Category: it.Category,
		}
	}
	return inputs
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	var violations domain.Violations
	if errors.As(err, &violations) {
		WriteError(w, http.StatusBadRequest, "validation_error", violations.Error())
		return
	}
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		WriteError(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		WriteError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderTerminal):
		WriteError(w, http.StatusConflict, "order_terminal", err.Error())
	case errors.Is(err, domain.ErrOrderLocked):
		WriteError(w, http.StatusConflict, "order_locked", err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		WriteError(w, http.StatusConflict, "concurrency_conflict", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		WriteError(w, http.StatusForbidden, "permission_denied", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
