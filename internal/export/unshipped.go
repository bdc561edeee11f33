// Package export streams order reports as CSV attachments.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/obs"
	"github.com/noah-isme/toko-fees/internal/order"
)

// UnshippedType names the unshipped orders export in metrics and logs.
const UnshippedType = "unshipped_orders"

// Header is the unshipped orders CSV header row.
var Header = []string{
	"Order ID",
	"First Name",
	"Last Name",
	"Email",
	"Address",
	"Address Line 2",
	"City",
	"State / Province",
	"Zip / Postal Code",
	"Country",
}

// PendingSource lists orders waiting to be shipped.
type PendingSource interface {
	Pending(ctx context.Context) ([]order.Order, error)
}

// Handler serves the unshipped orders export.
type Handler struct {
	Orders     PendingSource
	FilePrefix string
	Now        func() time.Time
	Log        *zerolog.Logger
}

// Record converts an order into its CSV row.
func Record(o order.Order) []string {
	row := []string{o.ID, o.FirstName, o.LastName, o.Email, "", "", "", "", "", ""}
	if addr := o.ShippingInfo; addr != nil {
		copy(row[4:], []string{addr.Address, addr.Address2, addr.City, addr.State, addr.Zip, addr.Country})
	}
	return row
}

// WriteUnshipped writes the header and one row per order. It returns the row count.
func WriteUnshipped(w io.Writer, orders []order.Order) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	n := 0
	for _, o := range orders {
		if err := cw.Write(Record(o)); err != nil {
			return n, fmt.Errorf("write csv row %s: %w", o.ID, err)
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// Filename returns the dated attachment name, e.g. unshipped-orders-2024-05-01.csv.
func (h *Handler) Filename() string {
	prefix := h.FilePrefix
	if prefix == "" {
		prefix = "unshipped-orders"
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return prefix + "-" + now().UTC().Format("2006-01-02") + ".csv"
}

// UnshippedOrders handles GET /api/v1/admin/exports/unshipped-orders.csv.
func (h *Handler) UnshippedOrders(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "export not configured", nil)
		return
	}
	orders, err := h.Orders.Pending(r.Context())
	if err != nil {
		if h.Log != nil {
			h.Log.Error().Err(err).Str("export", UnshippedType).Msg("load unshipped orders failed")
		}
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		common.JSONError(w, status, "INTERNAL", "failed to load orders", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.Filename()+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	n, err := WriteUnshipped(w, orders)
	obs.ObserveExportRows(UnshippedType, n)
	if err != nil && h.Log != nil {
		h.Log.Error().Err(err).Int("rows", n).Msg("unshipped orders export interrupted")
		return
	}
	if h.Log != nil {
		h.Log.Info().Int("rows", n).Str("export", UnshippedType).Msg("unshipped orders exported")
	}
}
