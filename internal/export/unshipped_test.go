package export

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/order"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

type stubSource struct {
	orders []order.Order
	err    error
}

func (s stubSource) Pending(context.Context) ([]order.Order, error) { return s.orders, s.err }

func TestUnshippedOrdersCSV(t *testing.T) {
	src := stubSource{orders: []order.Order{
		{
			ID: "o-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			ShippingInfo: &shipping.Address{Address: "1 Main St", Address2: "Apt 2", City: "Austin", State: "TX", Zip: "78701", Country: "US"},
		},
		{
			ID: "o-2", FirstName: "Grace", LastName: "Hopper, Jr", Email: "grace@example.com",
			ShippingInfo: &shipping.Address{Address: "5 Rue", City: "Paris", Zip: "75001", Country: "FR"},
		},
	}}
	h := &Handler{Orders: src, Now: func() time.Time { return time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC) }}

	rec := httptest.NewRecorder()
	h.UnshippedOrders(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/exports/unshipped-orders.csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="unshipped-orders-2024-05-01.csv"`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, Header, records[0])
	require.Equal(t, []string{"o-1", "Ada", "Lovelace", "ada@example.com", "1 Main St", "Apt 2", "Austin", "TX", "78701", "US"}, records[1])
	require.Equal(t, "Hopper, Jr", records[2][2])
	require.Equal(t, "", records[2][5])
	require.Equal(t, "", records[2][7])
}

func TestUnshippedOrdersEmpty(t *testing.T) {
	h := &Handler{Orders: stubSource{}, FilePrefix: "pending"}
	rec := httptest.NewRecorder()
	h.UnshippedOrders(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{Header}, records)
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="pending-`)
}

func TestUnshippedOrdersSourceError(t *testing.T) {
	h := &Handler{Orders: stubSource{err: errors.New("db down")}}
	rec := httptest.NewRecorder()
	h.UnshippedOrders(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecordWithoutSnapshot(t *testing.T) {
	row := Record(order.Order{ID: "o-9", FirstName: "A", LastName: "B", Email: "e@example.com"})
	require.Len(t, row, len(Header))
	require.Equal(t, "", row[4])
}
