package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RulesStore interface {
	OrderRules(ctx context.Context) (settings.OrderRules, error)
	SetOrderRules(ctx context.Context, r settings.OrderRules) error
}

type SettingsHandler struct {
	Rules RulesStore
	Log   *zap.Logger
}

func (h *SettingsHandler) Register(r chi.Router) {
	r.Get("/settings/order-rules", h.get)
	r.Put("/settings/order-rules", h.put)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.OrderRules(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var rules settings.OrderRules
	err := decodeJSON(r, &rules)
	if err == nil {
		err = h.Rules.SetOrderRules(r.Context(), rules)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}
