package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	List(ctx context.Context, userID int64) (*cart.Cart, error)
	Add(ctx context.Context, userID, productID int64, variantID *int64, qty int) (int64, error)
	Update(ctx context.Context, userID, itemID int64, qty int) error
	Remove(ctx context.Context, userID, itemID int64) error
}

type CartHandler struct {
	Cart CartService
	Log  *zap.Logger
}

type addCartItemReq struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.list)
	r.Post("/cart/items", h.add)
	r.Patch("/cart/items/{id}", h.update)
	r.Delete("/cart/items/{id}", h.remove)
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.List(r.Context(), principal(r).ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addCartItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, h.Log, apperr.Validation("product_id is required"))
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	id, err := h.Cart.Add(r.Context(), principal(r).ID, req.ProductID, req.VariantID, req.Qty)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	id, err := pathID(r, "id")
	if err == nil {
		err = decodeJSON(r, &req)
	}
	if err == nil {
		err = h.Cart.Update(r.Context(), principal(r).ID, id, req.Qty)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = h.Cart.Remove(r.Context(), principal(r).ID, id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
