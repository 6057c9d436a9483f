package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"comanda/internal/auth"
	"comanda/internal/realtime"
	"comanda/internal/service"

	"github.com/go-chi/chi/v5"
)

// identityKey is the context key for the verified caller identity.
type contextKey string

const identityKey contextKey = "identity"

// NewRouter creates a chi router with all routes registered, request
// logging, Content-Type validation, and bearer-token authentication.
// The websocket endpoint authenticates separately because browsers
// cannot set headers on an upgrade request.
func NewRouter(
	orderSvc *service.OrderService,
	tracker *realtime.Tracker,
	verifier *auth.Verifier,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	orderH := NewOrderHandler(orderSvc)
	wsH := NewSocketHandler(orderSvc, tracker, verifier, logger)

	// Health check and websocket sit outside the auth middleware.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", wsH.Serve)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(verifier))

		// Order routes.
		r.Post("/orders", orderH.CreateOrder)
		r.Get("/orders", orderH.ListOrders)
		r.Get("/orders/{order_id}", orderH.GetOrder)
		r.Delete("/orders/{order_id}", orderH.DeleteOrder)
		r.Post("/orders/{order_id}/items", orderH.AddItems)
		r.Delete("/orders/{order_id}/items/{item_id}", orderH.RemoveItem)
		r.Post("/orders/{order_id}/payments", orderH.ApplyPayment)
		r.Post("/orders/{order_id}/status", orderH.ChangeStatus)

		// Reporting routes.
		r.Get("/stats/daily", orderH.DailyStats)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate is middleware that verifies the Authorization bearer token
// and stores the caller identity in the request context.
func authenticate(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				WriteError(w, http.StatusUnauthorized, "invalid_token",
					"Authorization header must carry a bearer token")
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "invalid_token", "Token is missing, malformed, or expired")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFrom extracts the verified identity stored by the auth middleware.
func identityFrom(r *http.Request) auth.Identity {
	id, _ := r.Context().Value(identityKey).(auth.Identity)
	return id
}
