package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CatalogStore interface {
	ListProducts(ctx context.Context, onlyUp bool) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	AddVariant(ctx context.Context, productID int64, in catalog.VariantInput) (*catalog.Variant, error)
	UpdateVariant(ctx context.Context, id int64, patch catalog.VariantPatch) (*catalog.Variant, error)
	DeleteVariant(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status catalog.Status) error
	SetPinned(ctx context.Context, id int64, pinned bool) error
	DeleteProduct(ctx context.Context, id int64) error
}

type CatalogHandler struct {
	Store CatalogStore
	Log   *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
}

func (h *CatalogHandler) RegisterAdmin(r chi.Router) {
	r.Get("/products", h.listAll)
	r.Post("/products", h.create)
	r.Patch("/products/{id}/status", h.setStatus)
	r.Patch("/products/{id}/pinned", h.setPinned)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Post("/products/{id}/variants", h.addVariant)
	r.Patch("/variants/{id}", h.updateVariant)
	r.Delete("/variants/{id}", h.deleteVariant)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Store.ListProducts(r.Context(), true)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) listAll(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Store.ListProducts(r.Context(), false)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// get hides products that are not on sale.
func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err == nil && p.Status != catalog.StatusUp {
		err = apperr.NotFound("product id=%d does not exist", id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	p, err := h.Store.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status catalog.Status `json:"status"`
	}
	h.updateProduct(w, r, &req, func(ctx context.Context, id int64) error {
		return h.Store.SetStatus(ctx, id, req.Status)
	})
}

func (h *CatalogHandler) setPinned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pinned bool `json:"pinned"`
	}
	h.updateProduct(w, r, &req, func(ctx context.Context, id int64) error {
		return h.Store.SetPinned(ctx, id, req.Pinned)
	})
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request, req any, fn func(context.Context, int64) error) {
	id, err := pathID(r, "id")
	if err == nil {
		err = decodeJSON(r, req)
	}
	if err == nil {
		err = fn(r.Context(), id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = h.Store.DeleteProduct(r.Context(), id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) addVariant(w http.ResponseWriter, r *http.Request) {
	var in catalog.VariantInput
	id, err := pathID(r, "id")
	if err == nil {
		err = decodeJSON(r, &in)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	v, err := h.Store.AddVariant(r.Context(), id, in)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *CatalogHandler) updateVariant(w http.ResponseWriter, r *http.Request) {
	var patch catalog.VariantPatch
	id, err := pathID(r, "id")
	if err == nil {
		err = decodeJSON(r, &patch)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	v, err := h.Store.UpdateVariant(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CatalogHandler) deleteVariant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = h.Store.DeleteVariant(r.Context(), id)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
