package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, userID int64, itemIDs []int64) (*orders.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, p auth.Principal, orderNo string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]orders.Order, error)
}

type StateMachine interface {
	MarkPaid(ctx context.Context, p auth.Principal, orderNo string, amount *decimal.Decimal) (*orders.Order, error)
	MarkUnpaid(ctx context.Context, p auth.Principal, orderNo string) (*orders.Order, error)
	Cancel(ctx context.Context, p auth.Principal, orderNo, reason string) (*orders.Order, bool, error)
}

type OrdersHandler struct {
	Checkout Checkouter
	Orders   OrderReader
	Machine  StateMachine
	Log      *zap.Logger
}

type checkoutReq struct {
	ItemIDs []int64 `json:"item_ids"`
}

type cancelResp struct {
	Order   *orders.Order `json:"order"`
	Changed bool          `json:"changed"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.list)
	r.Get("/orders/{orderNo}", h.get)
	r.Post("/orders/{orderNo}/cancel", h.cancel)
}

func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Get("/orders/{orderNo}", h.get)
	r.Post("/orders/{orderNo}/mark-paid", h.markPaid)
	r.Post("/orders/{orderNo}/mark-unpaid", h.markUnpaid)
	r.Post("/orders/{orderNo}/cancel", h.cancel)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	o, err := h.Checkout.Checkout(r.Context(), principal(r).ID, req.ItemIDs)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListByUser(r.Context(), principal(r).ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), principal(r), chi.URLParam(r, "orderNo"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	p := principal(r)
	if p.IsAdmin() {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	o, changed, err := h.Machine.Cancel(r.Context(), p, chi.URLParam(r, "orderNo"), req.Reason)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResp{Order: o, Changed: changed})
}

func (h *OrdersHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountPaid *decimal.Decimal `json:"amount_paid"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	o, err := h.Machine.MarkPaid(r.Context(), principal(r), chi.URLParam(r, "orderNo"), req.AmountPaid)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) markUnpaid(w http.ResponseWriter, r *http.Request) {
	o, err := h.Machine.MarkUnpaid(r.Context(), principal(r), chi.URLParam(r, "orderNo"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
