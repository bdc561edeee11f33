package order

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/auth"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/lifecycle"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

const (
	pendingID = "11111111-1111-1111-1111-111111111111"
	noneID    = "22222222-2222-2222-2222-222222222222"
	shippedID = "33333333-3333-3333-3333-333333333333"
	vendorA   = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	vendorB   = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

type memStore struct {
	orders map[string]Order
	owners map[string][]string
	params ListParams
}

func newMemStore() *memStore {
	addr := &shipping.Address{Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Country: "US"}
	return &memStore{
		orders: map[string]Order{
			pendingID: {ID: pendingID, Number: 1, Email: "a@example.com", ShipmentStatus: StatusPending, ShippingInfo: addr, CreatedAt: time.Unix(100, 0)},
			noneID:    {ID: noneID, Number: 2, Email: "b@example.com", ShipmentStatus: StatusNone, CreatedAt: time.Unix(200, 0)},
			shippedID: {ID: shippedID, Number: 3, Email: "c@example.com", ShipmentStatus: StatusShipped, ShippingInfo: addr, CreatedAt: time.Unix(300, 0)},
		},
		owners: map[string][]string{pendingID: {vendorA}},
	}
}

func (m *memStore) Create(_ context.Context, o Order) (Order, error) {
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) Get(_ context.Context, id string) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) List(_ context.Context, p ListParams) ([]Order, int64, error) {
	m.params = p
	var out []Order
	for _, id := range []string{pendingID, noneID, shippedID} {
		if o, ok := m.orders[id]; ok && (p.Status == "" || o.ShipmentStatus == p.Status) {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListByStatus(_ context.Context, st Status) ([]Order, error) {
	var out []Order
	for _, id := range []string{pendingID, noneID, shippedID} {
		if o, ok := m.orders[id]; ok && o.ShipmentStatus == st {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, st Status) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.ShipmentStatus = st
	m.orders[id] = o
	return nil
}

func (m *memStore) UpdateShippingInfo(_ context.Context, id string, addr shipping.Address) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.ShippingInfo = &addr
	m.orders[id] = o
	return nil
}

func (m *memStore) VendorOwns(_ context.Context, orderID, vendorID string) (bool, error) {
	for _, v := range m.owners[orderID] {
		if v == vendorID {
			return true, nil
		}
	}
	return false, nil
}

func newService(store *memStore) *Service {
	return &Service{Store: store, Renderer: &shipping.Checkout{}}
}

func TestStatusTransitions(t *testing.T) {
	next, err := StatusPending.Toggle()
	require.NoError(t, err)
	require.Equal(t, StatusShipped, next)

	next, err = StatusShipped.Toggle()
	require.NoError(t, err)
	require.Equal(t, StatusPending, next)

	_, err = StatusNone.Toggle()
	require.ErrorIs(t, err, ErrNotShippable)

	require.Equal(t, "No", StatusPending.Label())
	require.Equal(t, "Yes", StatusShipped.Label())
	require.Equal(t, "N/A", StatusNone.Label())

	require.Equal(t, StatusNone, InitialStatus(nil))
	require.Equal(t, StatusNone, InitialStatus([]byte("null")))
	require.Equal(t, StatusPending, InitialStatus([]byte(`{"city":"Austin"}`)))

	st, err := ParseStatus(" Shipped ")
	require.NoError(t, err)
	require.Equal(t, StatusShipped, st)
	_, err = ParseStatus("lost")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestToggleByAdminAndVendor(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	st, err := svc.Toggle(ctx, Actor{UserID: "admin-1", Admin: true}, shippedID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)

	st, err = svc.Toggle(ctx, Actor{UserID: vendorA, Vendor: true}, pendingID)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, st)

	_, err = svc.Toggle(ctx, Actor{UserID: vendorB, Vendor: true}, pendingID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	_, err = svc.Toggle(ctx, Actor{UserID: "buyer"}, pendingID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Toggle(ctx, Actor{Admin: true}, noneID)
	require.ErrorIs(t, err, ErrNotShippable)
	require.Equal(t, StatusNone, store.orders[noneID].ShipmentStatus)

	_, err = svc.Toggle(ctx, Actor{Admin: true}, "not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetShippedLeavesOrdersWithoutShipping(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	st, err := svc.SetShipped(ctx, noneID, true)
	require.NoError(t, err)
	require.Equal(t, StatusNone, st)
	require.Equal(t, StatusNone, store.orders[noneID].ShipmentStatus)

	st, err = svc.SetShipped(ctx, pendingID, true)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, st)

	st, err = svc.SetShipped(ctx, pendingID, true)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, st)
}

func TestBulkSetShippedReportsEachOrder(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	out, err := svc.BulkSetShipped(context.Background(), []string{pendingID, noneID, "bogus", "44444444-4444-4444-4444-444444444444"}, true)
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, BulkUpdated, out[0].Result)
	require.Equal(t, StatusShipped, out[0].Status)
	require.Equal(t, BulkSkipped, out[1].Result)
	require.Equal(t, BulkFailed, out[2].Result)
	require.Equal(t, BulkFailed, out[3].Result)

	_, err = svc.BulkSetShipped(context.Background(), nil, true)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetRendersShippingLines(t *testing.T) {
	svc := newService(newMemStore())

	d, err := svc.Get(context.Background(), pendingID)
	require.NoError(t, err)
	require.Equal(t, []string{"1 Main St", "Austin, TX 78701", "United States"}, d.ShippingLines)
	require.Equal(t, "No", d.ShippedLabel)

	d, err = svc.Get(context.Background(), noneID)
	require.NoError(t, err)
	require.Empty(t, d.ShippingLines)
}

func TestUpdateAddress(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.UpdateAddress(ctx, pendingID, AddressInput{Address: "2 Elm", City: "Toronto", Zip: "M5V", Country: "ca"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)

	d, err := svc.UpdateAddress(ctx, pendingID, AddressInput{Address: "2 Elm", City: "Toronto", State: "ON", Zip: "M5V", Country: "ca"})
	require.NoError(t, err)
	require.Equal(t, "CA", store.orders[pendingID].ShippingInfo.Country)
	require.Equal(t, []string{"2 Elm", "Toronto, ON M5V", "Canada"}, d.ShippingLines)

	_, err = svc.UpdateAddress(ctx, noneID, AddressInput{Address: "2 Elm", City: "Berlin", Zip: "10115", Country: "DE"})
	require.ErrorIs(t, err, ErrNotShippable)
}

func TestPendingListsOnlyPendingOrders(t *testing.T) {
	orders, err := newService(newMemStore()).Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, pendingID, orders[0].ID)
}

func TestOrderByUsesWhitelistedColumns(t *testing.T) {
	require.Contains(t, orderBy(ListParams{Sort: SortShipped, Desc: true}), "CASE shipping_status")
	require.Contains(t, orderBy(ListParams{Sort: SortShipped, Desc: true}), "DESC")
	require.Equal(t, "number ASC", orderBy(ListParams{Sort: SortID}))
	require.Equal(t, "created_at ASC, number ASC", orderBy(ListParams{Sort: "drop table"}))
}

func adminRouter(svc *Service) http.Handler {
	h := &AdminHandler{Svc: svc, DefaultLimit: 20}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := common.WithUserID(r.Context(), "admin-1")
			ctx = common.WithRoles(ctx, []string{common.RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/shipment", h.PatchShipment)
	r.Post("/orders/shipment/bulk", h.Bulk)
	r.Put("/orders/{id}/shipping-address", h.PutShippingAddress)
	return r
}

func TestAdminListHandler(t *testing.T) {
	store := newMemStore()
	srv := adminRouter(newService(store))

	req := httptest.NewRequest(http.MethodGet, "/orders?orderby=shipped&order=desc&page=2&limit=5", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, SortShipped, store.params.Sort)
	require.True(t, store.params.Desc)
	require.Equal(t, 2, store.params.Page)
	require.Equal(t, 5, store.params.PerPage)

	var body struct {
		Data    []listRow `json:"data"`
		Columns []Column  `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 3)
	require.Equal(t, []string{"No", "N/A", "Yes"}, []string{body.Data[0].Shipped, body.Data[1].Shipped, body.Data[2].Shipped})
	require.Equal(t, "Shipped?", body.Columns[len(body.Columns)-2].Label)
	require.Equal(t, "Status", body.Columns[len(body.Columns)-1].Label)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=lost", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPatchShipment(t *testing.T) {
	store := newMemStore()
	srv := adminRouter(newService(store))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/"+pendingID+"/shipment", bytes.NewBufferString(`{"shipped":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/"+pendingID+"/shipment", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, StatusPending, store.orders[pendingID].ShipmentStatus)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/"+noneID+"/shipment", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/44444444-4444-4444-4444-444444444444/shipment", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminBulkAndAddress(t *testing.T) {
	store := newMemStore()
	srv := adminRouter(newService(store))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/shipment/bulk",
		bytes.NewBufferString(`{"ids":["`+pendingID+`","`+noneID+`"],"shipped":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/orders/"+shippedID+"/shipping-address",
		bytes.NewBufferString(`{"address":"9 Oak","city":"Paris","zip":"75001","country":"FR"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Paris", store.orders[shippedID].ShippingInfo.City)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/orders/"+shippedID+"/shipping-address",
		bytes.NewBufferString(`{"city":"Paris"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func vendorRequest(id, vendor, referer, token string) *http.Request {
	target := "/vendor/orders/" + id + "/toggle-shipped"
	if token != "" {
		target += "?token=" + token
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = "shop.example.com"
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	ctx := common.WithUserID(req.Context(), vendor)
	ctx = common.WithRoles(ctx, []string{common.RoleVendor})
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func newVendorHandler(t *testing.T, store *memStore) (*VendorHandler, *auth.ActionSigner) {
	t.Helper()
	links, err := auth.NewActionSigner("test-secret", time.Hour)
	require.NoError(t, err)
	return &VendorHandler{Svc: newService(store), Links: links, Fallback: "/vendor/orders"}, links
}

func TestVendorToggleAlwaysRedirects(t *testing.T) {
	store := newMemStore()
	h, links := newVendorHandler(t, store)
	tokenA, err := links.Sign(ToggleAction, pendingID, vendorA)
	require.NoError(t, err)
	tokenB, err := links.Sign(ToggleAction, pendingID, vendorB)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(pendingID, vendorA, "http://shop.example.com/vendor/orders?page=2", tokenA))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/vendor/orders?page=2", rec.Header().Get("Location"))
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	rec = httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(pendingID, vendorB, "http://evil.example.net/", tokenB))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/vendor/orders", rec.Header().Get("Location"))
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	tokenNone, err := links.Sign(ToggleAction, noneID, vendorA)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(noneID, vendorA, "", tokenNone))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/vendor/orders", rec.Header().Get("Location"))
	require.Equal(t, StatusNone, store.orders[noneID].ShipmentStatus)
}

func TestVendorToggleRequiresSignedLink(t *testing.T) {
	store := newMemStore()
	h, links := newVendorHandler(t, store)

	// A cookie-authenticated request without a token, as a cross-site image would send.
	rec := httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(pendingID, vendorA, "http://shop.example.com/vendor/orders", ""))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, StatusPending, store.orders[pendingID].ShipmentStatus)

	otherOrder, err := links.Sign(ToggleAction, shippedID, vendorA)
	require.NoError(t, err)
	otherVendor, err := links.Sign(ToggleAction, pendingID, vendorB)
	require.NoError(t, err)
	for _, token := range []string{"garbage", otherOrder, otherVendor} {
		rec = httptest.NewRecorder()
		h.ToggleShipped(rec, vendorRequest(pendingID, vendorA, "", token))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, StatusPending, store.orders[pendingID].ShipmentStatus)
	}

	h.Links = nil
	token, err := links.Sign(ToggleAction, pendingID, vendorA)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(pendingID, vendorA, "", token))
	require.Equal(t, StatusPending, store.orders[pendingID].ShipmentStatus)
}

func TestVendorToggleLink(t *testing.T) {
	store := newMemStore()
	h, _ := newVendorHandler(t, store)

	req := vendorRequest(pendingID, vendorA, "", "")
	rec := httptest.NewRecorder()
	h.ToggleLink(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, strings.HasPrefix(body.Data.URL, "/api/v1/vendor/orders/"+pendingID+"/toggle-shipped?token="))

	link, err := url.Parse(body.Data.URL)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ToggleShipped(rec, vendorRequest(pendingID, vendorA, "", link.Query().Get("token")))
	require.Equal(t, StatusShipped, store.orders[pendingID].ShipmentStatus)

	rec = httptest.NewRecorder()
	h.ToggleLink(rec, vendorRequest(pendingID, vendorB, "", ""))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ToggleLink(rec, vendorRequest(pendingID, "", "", ""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

var _ lifecycle.OrderRenderer = (*shipping.Checkout)(nil)
