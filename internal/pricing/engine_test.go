package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/fees"
)

func TestComputeWithShippingAndDiscount(t *testing.T) {
	items := []Item{{Qty: 2, UnitPrice: 2500}, {Qty: 2, UnitPrice: 2500}, {Qty: 0, UnitPrice: 999}}
	s := Compute(items, []fees.Fee{
		{Key: "shipping_a", Amount: 500},
		{Key: "volume_discount", Amount: -1000},
	})
	require.Equal(t, Money(10000), s.Subtotal)
	require.Equal(t, Money(500), s.Charges)
	require.Equal(t, Money(1000), s.Discounts)
	require.Equal(t, Money(9500), s.Total)
}

func TestComputeClampsTotal(t *testing.T) {
	s := Compute([]Item{{Qty: 1, UnitPrice: 100}}, []fees.Fee{{Key: "volume_discount", Amount: -500}})
	require.Zero(t, s.Total)
	require.NotNil(t, Compute(nil, nil).Fees)
}
