package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/fees"
)

type recorder struct {
	name   string
	trace  *[]string
	fail   error
	errors []FieldError
}

func (r recorder) Name() string { return r.name }

func (r recorder) OnCartChanged(_ context.Context, c *cart.Cart) error {
	*r.trace = append(*r.trace, r.name+":cart")
	c.Fees.Add(fees.Fee{Key: r.name, Amount: 1})
	return r.fail
}

func (r recorder) ValidateCheckout(context.Context, *cart.Cart, CheckoutForm) ([]FieldError, error) {
	*r.trace = append(*r.trace, r.name+":validate")
	return r.errors, nil
}

func (r recorder) RenderOrder(OrderView) []string { return []string{r.name} }

type renderOnly struct{}

func (renderOnly) RenderOrder(OrderView) []string { return []string{"only"} }

func TestOrchestratorRunsStagesInOrder(t *testing.T) {
	var trace []string
	o := New(
		recorder{name: "shipping", trace: &trace, errors: []FieldError{{Code: "missing_zip"}}},
		recorder{name: "discount", trace: &trace, errors: []FieldError{{Code: "other"}}},
		renderOnly{},
	)

	c := &cart.Cart{}
	require.NoError(t, o.Recalculate(context.Background(), c))
	errs, err := o.ValidateCheckout(context.Background(), c, CheckoutForm{})
	require.NoError(t, err)

	require.Equal(t, []string{"shipping:cart", "discount:cart", "shipping:validate", "discount:validate"}, trace)
	require.Len(t, errs, 2)
	require.Equal(t, 2, c.Fees.Len())
	require.Equal(t, []string{"shipping", "discount", "only"}, o.RenderOrder(OrderView{}))
	require.NoError(t, o.OrderCreated(context.Background(), c, CheckoutForm{}, &OrderDraft{}))
}

func TestOrchestratorStopsOnObserverError(t *testing.T) {
	var (
		trace    []string
		observed []string
	)
	boom := errors.New("boom")
	o := New(recorder{name: "shipping", trace: &trace, fail: boom}, recorder{name: "discount", trace: &trace}).
		WithObserver(func(component string, err error) {
			observed = append(observed, component)
		})

	err := o.Recalculate(context.Background(), &cart.Cart{})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "shipping")
	require.Equal(t, []string{"shipping:cart"}, trace)
	require.Equal(t, []string{"shipping"}, observed)
}

func TestAddressFieldsIsZero(t *testing.T) {
	require.True(t, AddressFields{}.IsZero())
	require.False(t, AddressFields{City: "Austin"}.IsZero())
}
