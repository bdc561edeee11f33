package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-fees/internal/common"
)

// AdminHandler provides administrative shipment tracking endpoints.
type AdminHandler struct {
	Svc          *Service
	DefaultLimit int
}

type listRow struct {
	ID             string `json:"id"`
	Number         int64  `json:"number"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Total          int64  `json:"amount"`
	Currency       string `json:"currency"`
	Date           string `json:"date"`
	UserID         string `json:"user"`
	ShipmentStatus Status `json:"shipmentStatus"`
	Shipped        string `json:"shipped"`
	Status         string `json:"status"`
}

func toRow(o Order) listRow {
	return listRow{
		ID:             o.ID,
		Number:         o.Number,
		Email:          o.Email,
		Name:           o.FirstName + " " + o.LastName,
		Total:          o.Total,
		Currency:       o.Currency,
		Date:           o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UserID:         o.UserID,
		ShipmentStatus: o.ShipmentStatus,
		Shipped:        o.ShipmentStatus.Label(),
		Status:         o.Status,
	}
}

func (h *AdminHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return false
	}
	return true
}

// List handles GET /api/v1/admin/orders?orderby=shipped&order=desc&status=pending.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	params := ListParams{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid status filter", nil)
			return
		}
		params.Status = st
	}
	sort, desc := common.ParseSort(r, string(SortDate))
	params.Sort, params.Desc = SortColumn(sort), desc
	params.Page, params.PerPage = common.ParsePagination(r, h.DefaultLimit)

	res, err := h.Svc.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	rows := make([]listRow, 0, len(res.Orders))
	for _, o := range res.Orders {
		rows = append(rows, toRow(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"columns":    Columns,
		"pagination": common.Pagination{Page: res.Page, PerPage: res.Limit, TotalItems: int(res.Total)},
	})
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	d, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

type shipmentRequest struct {
	Shipped *bool `json:"shipped"`
}

// PatchShipment handles PATCH /api/v1/admin/orders/{id}/shipment. Without a
// shipped flag the status is toggled.
func (h *AdminHandler) PatchShipment(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req shipmentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var (
		st  Status
		err error
	)
	if req.Shipped == nil {
		st, err = h.Svc.Toggle(r.Context(), ActorFromContext(r.Context()), id)
	} else {
		st, err = h.Svc.SetShipped(r.Context(), id, *req.Shipped)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":             id,
		"shipmentStatus": st,
		"shipped":        st.Label(),
	}})
}

type bulkRequest struct {
	IDs     []string `json:"ids"`
	Shipped bool     `json:"shipped"`
}

// Bulk handles POST /api/v1/admin/orders/shipment/bulk.
func (h *AdminHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req bulkRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	outcomes, err := h.Svc.BulkSetShipped(r.Context(), req.IDs, req.Shipped)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": outcomes})
}

// PutShippingAddress handles PUT /api/v1/admin/orders/{id}/shipping-address.
func (h *AdminHandler) PutShippingAddress(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in AddressInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	d, err := h.Svc.UpdateAddress(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteAppError(w, err, http.StatusInternalServerError, "INTERNAL")
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrNotShippable):
		common.JSONError(w, http.StatusConflict, "NOT_SHIPPABLE", "order has no shipping", nil)
	case errors.Is(err, ErrForbidden):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "not allowed to change this order", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
