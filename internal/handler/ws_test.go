package handler

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"comanda/internal/auth"
	"comanda/internal/domain"
	"comanda/internal/realtime"
	"comanda/internal/service"
	"comanda/internal/store"
)

type wsEnv struct {
	handler *SocketHandler
	tracker *realtime.Tracker
	svc     *service.OrderService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	logger := slog.Default()

	hub := realtime.NewHub(logger)
	tracker := realtime.NewTracker(store.NewSessionStore(), hub, 5*time.Minute, nil, logger)
	svc := service.NewOrderService(store.NewOrderStore(), hub, nil, nil, nil, logger)
	verifier := auth.NewVerifier("test-secret")

	return &wsEnv{
		handler: NewSocketHandler(svc, tracker, verifier, logger),
		tracker: tracker,
		svc:     svc,
	}
}

func (e *wsEnv) connect(role domain.Role) (*domain.Session, auth.Identity) {
	id := auth.Identity{UserID: "u1", UserName: "Carla", Role: role}
	sess, _ := e.tracker.Connect(id.UserID, id.UserName, id.Role, time.Now())
	return sess, id
}

func request(t *testing.T, reqType, requestID string, data any) realtime.Request {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal event data: %v", err)
		}
		raw = b
	}
	return realtime.Request{Type: reqType, RequestID: requestID, Data: raw}
}

func TestDispatchCreateOrder(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RolePersonal)

	ack := env.handler.dispatch(sess, id, request(t, "create_order", "r1", map[string]any{
		"channel":      "local",
		"table_number": "4",
		"items": []map[string]any{
			{"name": "Lomo saltado", "price": 10.0, "quantity": 2},
		},
	}))
	if !ack.Success {
		t.Fatalf("create_order failed: %s", ack.Message)
	}
	if ack.Type != "order_created" || ack.RequestID != "r1" {
		t.Errorf("ack = %+v", ack)
	}

	payload, ok := ack.Data.(service.OrderPayload)
	if !ok {
		t.Fatalf("ack data is %T", ack.Data)
	}
	if payload.Total != 20 {
		t.Errorf("total = %v, want 20", payload.Total)
	}
	// Manager name defaults to the connected user.
	if payload.ManagerName != "Carla" {
		t.Errorf("manager_name = %q, want Carla", payload.ManagerName)
	}
}

func TestDispatchApplyPaymentUsesRequestIDForIdempotency(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RolePersonal)

	create := env.handler.dispatch(sess, id, request(t, "create_order", "r1", map[string]any{
		"channel":      "local",
		"table_number": "4",
		"items":        []map[string]any{{"name": "Ceviche", "price": 20.0, "quantity": 1}},
	}))
	if !create.Success {
		t.Fatalf("create_order failed: %s", create.Message)
	}
	orderID := create.Data.(service.OrderPayload).ID

	pay := request(t, "apply_payment", "pay-1", map[string]any{
		"order_id": orderID,
		"cash":     25.0,
	})
	first := env.handler.dispatch(sess, id, pay)
	if !first.Success {
		t.Fatalf("apply_payment failed: %s", first.Message)
	}
	result := first.Data.(service.TenderResultPayload)
	if result.Change != 5 {
		t.Errorf("change = %v, want 5", result.Change)
	}

	replay := env.handler.dispatch(sess, id, pay)
	if !replay.Success {
		t.Fatalf("replayed apply_payment failed: %s", replay.Message)
	}
	replayed := replay.Data.(service.TenderResultPayload)
	if replayed.Order.CashReceived != result.Order.CashReceived {
		t.Errorf("replay changed cash_received from %v to %v",
			result.Order.CashReceived, replayed.Order.CashReceived)
	}
}

func TestDispatchHeartbeat(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RolePersonal)

	ack := env.handler.dispatch(sess, id, request(t, "heartbeat", "hb-1", nil))
	if !ack.Success || ack.Type != "heartbeat_ack" {
		t.Errorf("heartbeat ack = %+v", ack)
	}
}

func TestDispatchPermissionDenied(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RolePersonal)

	ack := env.handler.dispatch(sess, id, request(t, "delete_order", "r1", map[string]any{
		"order_id": "o1",
	}))
	if ack.Success {
		t.Error("personal deleted an order")
	}

	ack = env.handler.dispatch(sess, id, request(t, "update_menu_price", "r2", map[string]any{
		"item_id": "m1",
		"price":   10.0,
	}))
	if ack.Success {
		t.Error("personal changed a menu price")
	}
}

func TestDispatchUnknownEvent(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RoleAdmin)

	ack := env.handler.dispatch(sess, id, request(t, "make_coffee", "r1", nil))
	if ack.Success {
		t.Error("unknown event acknowledged as success")
	}
}

func TestDispatchGetOnlineUsers(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RoleAdmin)

	ack := env.handler.dispatch(sess, id, request(t, "get_online_users", "r1", nil))
	if !ack.Success || ack.Type != "users_online" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestDispatchSendNotification(t *testing.T) {
	env := newWSEnv(t)
	sess, id := env.connect(domain.RoleAdmin)

	ack := env.handler.dispatch(sess, id, request(t, "send_notification", "r1", map[string]any{
		"target_role": "personal",
		"message":     "Mesa 4 lista",
	}))
	if !ack.Success {
		t.Fatalf("send_notification failed: %s", ack.Message)
	}

	ack = env.handler.dispatch(sess, id, request(t, "send_notification", "r2", map[string]any{
		"target_role": "chef",
		"message":     "hola",
	}))
	if ack.Success {
		t.Error("notification to an unknown role acknowledged as success")
	}
}
