package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/fees"
)

const (
	posterID  = "11111111-1111-4111-8111-111111111111"
	shirtID   = "22222222-2222-4222-8222-222222222222"
	shirtLgID = "33333333-3333-4333-8333-333333333333"
)

type stubProducts map[string]catalog.Product

func (s stubProducts) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

// countingRecalc records one flat fee per line so tests can observe recomputation.
type countingRecalc struct{ calls int }

func (r *countingRecalc) Recalculate(_ context.Context, c *Cart) error {
	r.calls++
	c.Fees.RemovePrefix("test_")
	for _, it := range c.Items {
		c.Fees.Add(fees.Fee{Key: "test_" + it.Key, Label: "Test", Amount: 100})
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *countingRecalc, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	recalc := &countingRecalc{}
	svc := &Service{
		Store: NewRedisStore(client, time.Hour, "cart"),
		Products: stubProducts{
			posterID: {ID: posterID, Title: "Poster", Price: 1500},
			shirtID: {ID: shirtID, Title: "Shirt", Variants: []catalog.Variant{
				{ID: shirtLgID, Name: "Large", Price: 2500},
			}},
		},
		Recalc:   recalc,
		Currency: "USD",
	}
	return svc, recalc, mr
}

func TestAddItemMergesLinesAndRecalculates(t *testing.T) {
	svc, recalc, mr := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{BuyerCountry: "ca"})
	require.NoError(t, err)
	require.Equal(t, "CA", c.BuyerCountry)
	require.True(t, mr.Exists("cart:"+c.ID))

	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: posterID, Qty: 1})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: posterID, Qty: 2})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: shirtID, VariantID: shirtLgID, Qty: 1})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	require.Equal(t, 4, c.ItemCount())
	require.Equal(t, int64(3*1500+2500), c.Subtotal())
	require.Equal(t, "Shirt - Large", c.Items[1].Title)
	require.Equal(t, 3, recalc.calls)
	require.Equal(t, 2, c.Fees.Len())

	loaded, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Fees.List(), loaded.Fees.List())
	require.Equal(t, int64(7000+200), loaded.Summary().Total)
}

func TestAddItemRequiresVariantForVariableProduct(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: shirtID, Qty: 1})
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: posterID, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuantityRemovalAndClearTriggerRecalculation(t *testing.T) {
	svc, recalc, _ := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, CreateInput{})
	c, _ = svc.AddItem(ctx, c.ID, AddItemInput{ProductID: posterID, Qty: 1})
	key := c.Items[0].Key

	c, err := svc.UpdateQty(ctx, c.ID, key, 5)
	require.NoError(t, err)
	require.Equal(t, 5, c.ItemCount())

	_, err = svc.UpdateQty(ctx, c.ID, "missing", 1)
	require.ErrorIs(t, err, ErrItemNotFound)

	c, err = svc.RemoveItem(ctx, c.ID, key)
	require.NoError(t, err)
	require.True(t, c.IsEmpty())
	require.Zero(t, c.Fees.Len())

	_, err = svc.Clear(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 4, recalc.calls)
}

func TestDestinationAndGatewaySelection(t *testing.T) {
	svc, recalc, _ := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, CreateInput{})

	c, err := svc.SetDestination(ctx, c.ID, " ca ")
	require.NoError(t, err)
	require.Equal(t, "CA", c.ShippingCountry)

	_, err = svc.SetDestination(ctx, c.ID, "Canada")
	require.ErrorIs(t, err, ErrInvalidInput)

	c, err = svc.SelectGateway(ctx, c.ID, "manual", false)
	require.NoError(t, err)
	require.True(t, c.NoBillingFields)
	require.Equal(t, 2, recalc.calls)
}

func TestCartExpiresWithTTL(t *testing.T) {
	svc, _, mr := newTestService(t)
	ctx := context.Background()
	c, _ := svc.Create(ctx, CreateInput{})
	mr.FastForward(2 * time.Hour)
	_, err := svc.Get(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandlersRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Post("/carts", h.Create)
	r.Get("/carts/{id}", h.Get)
	r.Post("/carts/{id}/items", h.AddItem)
	r.Patch("/carts/{id}/items/{key}", h.UpdateItem)
	r.Post("/carts/{id}/destination", h.Destination)
	r.Post("/carts/{id}/gateway", h.Gateway)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/carts", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data cartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id := created.Data.ID

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/carts/"+id+"/items",
		strings.NewReader(`{"productId":"`+posterID+`","qty":2}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/carts/"+id+"/destination", strings.NewReader(`{"country":"CA"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	var updated struct {
		Data cartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	require.Equal(t, "CA", updated.Data.ShippingCountry)
	require.Equal(t, int64(3000), updated.Data.Summary.Subtotal)
	require.Equal(t, int64(3100), updated.Data.Summary.Total)
	require.Equal(t, int64(3000), updated.Data.Items[0].Subtotal)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/carts/"+id+"/items/nope", strings.NewReader(`{"qty":1}`)))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/carts/"+id+"/gateway", strings.NewReader(`{"gateway":""}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/carts/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
