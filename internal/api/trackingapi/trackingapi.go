package trackingapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers/providertools"
	"github.com/BearBump/OrderTrack/internal/security"
	"github.com/BearBump/OrderTrack/internal/services/lookup"
)

type ItemStore interface {
	GetItems(ctx context.Context, orderID uint64) ([]models.TrackingItem, error)
	SetItems(ctx context.Context, orderID uint64, raw []models.TrackingItem) ([]models.TrackingItem, bool, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	UpsertOrder(ctx context.Context, order *models.Order) error
}

type PublicLookup interface {
	Track(ctx context.Context, orderID uint64, email, ip string) (*lookup.Result, error)
}

type EventLog interface {
	All(ctx context.Context) ([]security.Event, error)
	Clear(ctx context.Context) error
}

type ProviderTools interface {
	Test(ctx context.Context, p providertools.Pinger) providertools.Result
	LastResult(ctx context.Context, providerID string) (providertools.Result, bool, error)
	Clear(ctx context.Context, providerID string) error
}

// OrderNotifier receives order transitions that should trigger a sync.
type OrderNotifier interface {
	OrderCompleted(ctx context.Context, orderID uint64) error
}

type API struct {
	items         ItemStore
	orders        OrderStore
	lookup        PublicLookup
	events        EventLog
	tools         ProviderTools
	orderNotifier OrderNotifier
	pingers       map[string]providertools.Pinger
}

func New(items ItemStore, orders OrderStore, lk PublicLookup, events EventLog, tools ProviderTools, pingers ...providertools.Pinger) *API {
	byID := make(map[string]providertools.Pinger, len(pingers))
	for _, p := range pingers {
		if p != nil {
			byID[p.ID()] = p
		}
	}
	return &API{items: items, orders: orders, lookup: lk, events: events, tools: tools, pingers: byID}
}

// WithOrderNotifier attaches the broker bridge for completed-order events.
func (a *API) WithOrderNotifier(n OrderNotifier) *API {
	a.orderNotifier = n
	return a
}

// Routes mounts the admin and public surface onto a chi router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Put("/", a.upsertOrder)
		r.Get("/tracking", a.getTracking)
		r.Post("/tracking", a.setTracking)
		r.Delete("/tracking", a.deleteTracking)
	})

	r.Post("/public/track", a.publicTrack)

	r.Route("/security/events", func(r chi.Router) {
		r.Get("/", a.listEvents)
		r.Delete("/", a.clearEvents)
	})

	r.Route("/providers/{providerID}/test", func(r chi.Router) {
		r.Post("/", a.testProvider)
		r.Get("/", a.lastProviderResult)
		r.Delete("/", a.clearProviderResult)
	})
}

type trackingItemView struct {
	models.TrackingItem
	DisplayStatus string `json:"display_status"`
}

func itemViews(items []models.TrackingItem) []trackingItemView {
	out := make([]trackingItemView, 0, len(items))
	for _, it := range items {
		out = append(out, trackingItemView{TrackingItem: it, DisplayStatus: models.DisplayStatus(it)})
	}
	return out
}

func (a *API) getTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	items, err := a.items.GetItems(r.Context(), orderID)
	if err != nil {
		serverError(w, r, "get tracking items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "items": itemViews(items)})
}

type setTrackingRequest struct {
	Items []models.TrackingItem `json:"items"`
}

func (a *API) setTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req setTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	items, changed, err := a.items.SetItems(r.Context(), orderID, req.Items)
	if err != nil {
		serverError(w, r, "set tracking items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "changed": changed, "items": itemViews(items)})
}

func (a *API) deleteTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	_, changed, err := a.items.SetItems(r.Context(), orderID, nil)
	if err != nil {
		serverError(w, r, "delete tracking items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "changed": changed})
}

type upsertOrderRequest struct {
	BillingEmail string `json:"billing_email"`
	Status       string `json:"status"`
}

func (a *API) upsertOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req upsertOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order := &models.Order{ID: orderID, BillingEmail: req.BillingEmail, Status: req.Status}
	if err := a.orders.UpsertOrder(r.Context(), order); err != nil {
		serverError(w, r, "upsert order", err)
		return
	}

	if a.orderNotifier != nil && strings.EqualFold(order.Status, "completed") {
		// Повторный апсерт со статусом completed тоже шлёт событие; очередь дедуплицирует.
		if err := a.orderNotifier.OrderCompleted(r.Context(), orderID); err != nil {
			slog.Error("order completed notification", "order_id", orderID, "error", err.Error())
		}
	}
	writeJSON(w, http.StatusOK, order)
}

type publicTrackRequest struct {
	OrderID uint64 `json:"order_id"`
	Email   string `json:"email"`
}

func (a *API) publicTrack(w http.ResponseWriter, r *http.Request) {
	var req publicTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrderID == 0 || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "order_id and email are required")
		return
	}

	res, err := a.lookup.Track(r.Context(), req.OrderID, req.Email, clientIP(r))
	if err != nil {
		var rl *lookup.RateLimitedError
		switch {
		case errors.As(err, &rl):
			w.Header().Set("Retry-After", strconv.FormatInt(int64(rl.RetryAfter.Seconds()), 10))
			writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		case errors.Is(err, lookup.ErrNotFound):
			writeError(w, http.StatusNotFound, "no matching order")
		default:
			serverError(w, r, "public track", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     req.OrderID,
		"order_status": res.OrderStatus,
		"items":        itemViews(res.Items),
	})
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.events.All(r.Context())
	if err != nil {
		serverError(w, r, "list security events", err)
		return
	}
	if events == nil {
		events = []security.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) clearEvents(w http.ResponseWriter, r *http.Request) {
	if err := a.events.Clear(r.Context()); err != nil {
		serverError(w, r, "clear security events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (a *API) testProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := a.pingers[chi.URLParam(r, "providerID")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	writeJSON(w, http.StatusOK, a.tools.Test(r.Context(), p))
}

func (a *API) lastProviderResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")
	res, found, err := a.tools.LastResult(r.Context(), id)
	if err != nil {
		serverError(w, r, "read provider test result", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "provider was never tested")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) clearProviderResult(w http.ResponseWriter, r *http.Request) {
	if err := a.tools.Clear(r.Context(), chi.URLParam(r, "providerID")); err != nil {
		serverError(w, r, "clear provider test result", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op, "path", r.URL.Path, "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}
