package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/replenish"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Ingester interface {
	Authorize(provided string) error
	Ingest(ctx context.Context, apiKey, raw, deliveryKey string) (*replenish.Result, error)
}

// RFIDHandler is the machine-facing stock-in endpoint. Responses always carry
// an ok flag so devices can branch without parsing status codes.
type RFIDHandler struct {
	Gateway Ingester
	Log     *zap.Logger
}

type rfidOK struct {
	OK bool `json:"ok"`
	*replenish.Result
}

type rfidErr struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *RFIDHandler) Register(r chi.Router) {
	r.Post("/api/rfid/ingest", h.ingest)
}

func (h *RFIDHandler) fail(w http.ResponseWriter, err error) {
	code := apperr.HTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.Log.Error("rfid ingest failed", zap.Error(err))
		msg = "stock update failed"
	}
	writeJSON(w, code, rfidErr{OK: false, Error: msg})
}

func (h *RFIDHandler) ingest(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("api_key")
	}
	if err := h.Gateway.Authorize(key); err != nil {
		h.fail(w, err)
		return
	}

	raw, err := commandFromRequest(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.Gateway.Ingest(r.Context(), key, raw, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfidOK{OK: true, Result: res})
}

// commandFromRequest reads the command from a JSON body ({"data": ...} or
// {"rfid": ...}) or from the form fields of the same names.
func commandFromRequest(r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&body); err != nil {
			return "", apperr.Validation("invalid json")
		}
		for _, k := range []string{"data", "rfid"} {
			if s := stringify(body[k]); s != "" {
				return s, nil
			}
		}
	} else if err := r.ParseForm(); err == nil {
		for _, k := range []string{"data", "rfid"} {
			if s := strings.TrimSpace(r.PostForm.Get(k)); s != "" {
				return s, nil
			}
		}
	}
	return "", apperr.Validation("missing data or rfid field")
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}
