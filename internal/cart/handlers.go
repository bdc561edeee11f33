package cart

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type itemView struct {
	Item
	Subtotal int64 `json:"subtotal"`
}

type cartView struct {
	ID              string          `json:"id"`
	Items           []itemView      `json:"items"`
	ItemCount       int             `json:"itemCount"`
	ShippingCountry string          `json:"shippingCountry,omitempty"`
	BuyerCountry    string          `json:"buyerCountry,omitempty"`
	Gateway         string          `json:"gateway,omitempty"`
	Summary         pricing.Summary `json:"summary"`
}

func viewOf(c *Cart) cartView {
	items := make([]itemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, itemView{Item: it, Subtotal: it.Subtotal()})
	}
	return cartView{
		ID:              c.ID,
		Items:           items,
		ItemCount:       c.ItemCount(),
		ShippingCountry: c.ShippingCountry,
		BuyerCountry:    c.BuyerCountry,
		Gateway:         c.Gateway,
		Summary:         c.Summary(),
	}
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		BuyerCountry string `json:"buyerCountry"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	userID, _ := common.UserID(r.Context())
	c, err := h.Svc.Create(r.Context(), CreateInput{UserID: userID, BuyerCountry: payload.BuyerCountry})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": viewOf(c)})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, c, err)
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in AddItemInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), in)
	h.respond(w, c, err)
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{key}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Qty *int `json:"qty"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil || payload.Qty == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty is required", nil)
		return
	}
	c, err := h.Svc.UpdateQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"), *payload.Qty)
	h.respond(w, c, err)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{key}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	h.respond(w, c, err)
}

// Clear handles DELETE /api/v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, c, err)
}

// Destination handles POST /api/v1/carts/{id}/destination. The checkout form calls it
// whenever the typed shipping country changes and renders the returned totals.
func (h *Handler) Destination(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Country string `json:"country"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	c, err := h.Svc.SetDestination(r.Context(), chi.URLParam(r, "id"), payload.Country)
	h.respond(w, c, err)
}

// Gateway handles POST /api/v1/carts/{id}/gateway.
func (h *Handler) Gateway(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Gateway       string `json:"gateway"`
		BillingFields *bool  `json:"billingFields"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	billing := true
	if payload.BillingFields != nil {
		billing = *payload.BillingFields
	}
	c, err := h.Svc.SelectGateway(r.Context(), chi.URLParam(r, "id"), payload.Gateway, billing)
	h.respond(w, c, err)
}

func (h *Handler) respond(w http.ResponseWriter, c *Cart, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(c)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, catalog.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update cart", nil)
	}
}
