package livecart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/store"
)

// Handler exposes the live cart to the register (PUT, DELETE) and the
// customer display (GET).
type Handler struct {
	publisher *Publisher
}

// NewHandler constructs a Handler.
func NewHandler(p *Publisher) *Handler {
	return &Handler{publisher: p}
}

// Routes mounts the live cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/live-cart", h.Get)
	r.Put("/live-cart", h.Put)
	r.Delete("/live-cart", h.Delete)
}

// Get handles GET /live-cart. "published" is false until a register has
// published a cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	snap, found, err := h.publisher.Fetch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		common.JSON(w, http.StatusOK, map[string]any{"data": nil, "published": false})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap, "published": true})
}

// Put handles PUT /live-cart with the register's current cart.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var cart checkout.Cart
	if err := common.DecodeJSON(r, &cart); err != nil {
		common.WriteError(w, err)
		return
	}
	snap, err := h.publisher.PublishCart(r.Context(), cart)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap, "published": true})
}

// Delete handles DELETE /live-cart, leaving an explicit empty cart.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.publisher.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "live cart store unavailable", nil)
	case errors.Is(err, ErrCorruptSnapshot):
		common.JSONError(w, http.StatusInternalServerError, "CORRUPT_SNAPSHOT", "stored live cart is unreadable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
