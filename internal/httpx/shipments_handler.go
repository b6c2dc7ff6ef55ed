package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ShipmentService interface {
	PendingShipments(ctx context.Context, f orders.ShipmentFilter) ([]orders.ShipmentGroup, error)
	ShippedOrders(ctx context.Context, f orders.ShipmentFilter) ([]orders.Order, error)
	BulkShip(ctx context.Context, ids []int64, tracking string) (int, error)
}

type ShipmentsHandler struct {
	Shipments ShipmentService
	Loc       *time.Location
	Log       *zap.Logger
}

type bulkShipReq struct {
	OrderIDs       []int64 `json:"order_ids"`
	TrackingNumber string  `json:"tracking_number"`
}

type bulkShipResp struct {
	Requested int `json:"requested"`
	Shipped   int `json:"shipped"`
}

func (h *ShipmentsHandler) Register(r chi.Router) {
	r.Get("/shipments/pending", h.pending)
	r.Get("/shipments/shipped", h.shipped)
	r.Post("/shipments", h.bulkShip)
}

func (h *ShipmentsHandler) filter(r *http.Request) (orders.ShipmentFilter, error) {
	loc := h.Loc
	if loc == nil {
		loc = time.UTC
	}
	q := r.URL.Query()
	f := orders.ShipmentFilter{Keyword: q.Get("keyword")}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &f.From}, {"end", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return f, apperr.Validation("%s must be a date like 2006-01-02", p.name)
		}
		*p.dst = t
	}
	return f, nil
}

func (h *ShipmentsHandler) pending(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	groups, err := h.Shipments.PendingShipments(r.Context(), f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *ShipmentsHandler) shipped(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	list, err := h.Shipments.ShippedOrders(r.Context(), f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ShipmentsHandler) bulkShip(w http.ResponseWriter, r *http.Request) {
	var req bulkShipReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	n, err := h.Shipments.BulkShip(r.Context(), req.OrderIDs, req.TrackingNumber)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkShipResp{Requested: countDistinct(req.OrderIDs), Shipped: n})
}

func countDistinct(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
