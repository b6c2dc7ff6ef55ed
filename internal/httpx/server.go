package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// API wires every handler group onto one router. Nil groups are skipped.
type API struct {
	JWTSecret []byte
	Catalog   *CatalogHandler
	Cart      *CartHandler
	Orders    *OrdersHandler
	Shipments *ShipmentsHandler
	Settings  *SettingsHandler
	RFID      *RFIDHandler
}

func (a *API) Register(r chi.Router) {
	if a.RFID != nil {
		a.RFID.Register(r)
	}
	if a.Catalog != nil {
		a.Catalog.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(a.JWTSecret), RequireCustomer, middleware.NoCache)
		if a.Cart != nil {
			a.Cart.Register(r)
		}
		if a.Orders != nil {
			a.Orders.Register(r)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(Authenticate(a.JWTSecret), RequireAdmin, middleware.NoCache)
		if a.Catalog != nil {
			a.Catalog.RegisterAdmin(r)
		}
		if a.Orders != nil {
			a.Orders.RegisterAdmin(r)
		}
		if a.Shipments != nil {
			a.Shipments.Register(r)
		}
		if a.Settings != nil {
			a.Settings.Register(r)
		}
	})
}
