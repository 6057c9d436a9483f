package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comanda/internal/auth"
	"comanda/internal/domain"
	"comanda/internal/realtime"
	"comanda/internal/service"
	"comanda/internal/store"

	"github.com/go-chi/chi/v5"
)

type testEnv struct {
	router        chi.Router
	adminToken    string
	personalToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.Default()

	orders := store.NewOrderStore()
	hub := realtime.NewHub(logger)
	tracker := realtime.NewTracker(store.NewSessionStore(), hub, 5*time.Minute, nil, logger)
	svc := service.NewOrderService(orders, hub, nil, nil, nil, logger)
	verifier := auth.NewVerifier("test-secret")

	adminToken, err := verifier.Sign(auth.Identity{UserID: "u1", UserName: "Carla", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}
	personalToken, err := verifier.Sign(auth.Identity{UserID: "u2", UserName: "Pedro", Role: domain.RolePersonal})
	if err != nil {
		t.Fatalf("sign personal token: %v", err)
	}

	return &testEnv{
		router:        NewRouter(svc, tracker, verifier, logger),
		adminToken:    adminToken,
		personalToken: personalToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func localOrderBody() map[string]any {
	return map[string]any{
		"channel":      "local",
		"manager_name": "Carla",
		"table_number": "4",
		"items": []map[string]any{
			{"name": "Lomo saltado", "price": 10.0, "quantity": 2, "category": "fondos"},
		},
	}
}

func (e *testEnv) createOrder(t *testing.T, body map[string]any) service.OrderPayload {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/orders", e.adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /orders = %d: %s", rec.Code, rec.Body.String())
	}
	var payload service.OrderPayload
	decode(t, rec, &payload)
	return payload
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/orders", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /orders without token = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/orders", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /orders with bad token = %d, want 401", rec.Code)
	}
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	payload := env.createOrder(t, localOrderBody())
	if payload.Total != 20 {
		t.Errorf("total = %v, want 20", payload.Total)
	}
	if payload.Status != "pending" || payload.PaymentStatus != "pending" {
		t.Errorf("status = %s/%s, want pending/pending", payload.Status, payload.PaymentStatus)
	}
	if payload.CustomerName != "Mesa 4" {
		t.Errorf("customer_name = %q, want Mesa 4", payload.CustomerName)
	}
}

func TestCreateDeliveryOrderMissingPhone(t *testing.T) {
	env := newTestEnv(t)

	body := localOrderBody()
	body["channel"] = "delivery"
	body["customer_name"] = "Rosa Quispe"
	rec := env.do(t, http.MethodPost, "/orders", env.adminToken, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /orders = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	decode(t, rec, &resp)
	if resp.Error != "validation_error" {
		t.Errorf("error = %s, want validation_error", resp.Error)
	}
}

func TestContentTypeEnforced(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer "+env.adminToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST without Content-Type = %d, want 400", rec.Code)
	}
}

func TestApplyPayment(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, localOrderBody())

	rec := env.do(t, http.MethodPost, "/orders/"+order.ID+"/payments", env.adminToken, map[string]any{
		"request_id": "r1",
		"cash":       25.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST payments = %d: %s", rec.Code, rec.Body.String())
	}

	var result service.TenderResultPayload
	decode(t, rec, &result)
	if result.Change != 5 {
		t.Errorf("change = %v, want 5", result.Change)
	}
	if result.PaymentStatus != "paid" {
		t.Errorf("payment_status = %s, want paid", result.PaymentStatus)
	}
	if result.Order.CanModify {
		t.Error("paid order still modifiable")
	}

	// Replay returns the same receipt without double-counting.
	rec = env.do(t, http.MethodPost, "/orders/"+order.ID+"/payments", env.adminToken, map[string]any{
		"request_id": "r1",
		"cash":       25.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("replayed POST payments = %d: %s", rec.Code, rec.Body.String())
	}
	var replay service.TenderResultPayload
	decode(t, rec, &replay)
	if replay.Order.CashReceived != result.Order.CashReceived {
		t.Errorf("replay changed cash_received from %v to %v", result.Order.CashReceived, replay.Order.CashReceived)
	}
}

func TestChangeStatus(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, localOrderBody())

	rec := env.do(t, http.MethodPost, "/orders/"+order.ID+"/status", env.personalToken, map[string]any{
		"status": "preparing",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}

	// Skipping preparing → completed is a conflict.
	rec = env.do(t, http.MethodPost, "/orders/"+order.ID+"/status", env.personalToken, map[string]any{
		"status": "completed",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("invalid transition = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteOrderIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, localOrderBody())

	rec := env.do(t, http.MethodDelete, "/orders/"+order.ID, env.personalToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("DELETE as personal = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/orders/"+order.ID, env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE as admin = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/orders/"+order.ID, env.adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted order = %d, want 404", rec.Code)
	}
}

func TestAddAndRemoveItems(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, localOrderBody())

	rec := env.do(t, http.MethodPost, "/orders/"+order.ID+"/items", env.personalToken, map[string]any{
		"items": []map[string]any{
			{"name": "Inca Kola", "price": 5.0, "quantity": 1, "category": "bebidas"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST items = %d: %s", rec.Code, rec.Body.String())
	}
	var updated service.OrderPayload
	decode(t, rec, &updated)
	if updated.Total != 25 {
		t.Errorf("total after add = %v, want 25", updated.Total)
	}

	itemID := updated.Items[len(updated.Items)-1].ID
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/orders/%s/items/%s", order.ID, itemID), env.personalToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE item = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &updated)
	if updated.Total != 20 {
		t.Errorf("total after remove = %v, want 20", updated.Total)
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/orders/%s/items/%s", order.ID, "missing"), env.personalToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("DELETE missing item = %d, want 404", rec.Code)
	}
}

func TestListOrdersWithFilters(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, localOrderBody())

	delivery := localOrderBody()
	delivery["channel"] = "delivery"
	delivery["customer_name"] = "Rosa Quispe"
	delivery["customer_phone"] = "987654321"
	env.createOrder(t, delivery)

	rec := env.do(t, http.MethodGet, "/orders?channel=delivery", env.personalToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /orders = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Orders []service.OrderPayload `json:"orders"`
	}
	decode(t, rec, &resp)
	if len(resp.Orders) != 1 || resp.Orders[0].Channel != "delivery" {
		t.Errorf("filtered orders = %+v", resp.Orders)
	}

	rec = env.do(t, http.MethodGet, "/orders?status=cooking", env.personalToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status filter = %d, want 400", rec.Code)
	}
}

func TestDailyStatsIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/stats/daily", env.personalToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("GET /stats/daily as personal = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/stats/daily", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /stats/daily as admin = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/stats/daily?date=14-03-2026", env.adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", rec.Code)
	}
}
