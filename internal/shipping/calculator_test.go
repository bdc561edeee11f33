package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/fees"
)

type stubProfiles map[string]catalog.ShippingProfile

func (s stubProfiles) Profile(_ context.Context, id string) (catalog.ShippingProfile, error) {
	if id == "broken" {
		return catalog.ShippingProfile{}, errors.New("db down")
	}
	p, ok := s[id]
	if !ok {
		return catalog.ShippingProfile{}, catalog.ErrNotFound
	}
	return p, nil
}

var profiles = stubProfiles{
	"A":       {Enabled: true, DomesticRate: 500, InternationalRate: 2000},
	"digital": {Enabled: false, DomesticRate: 500, InternationalRate: 2000},
	"free":    {Enabled: true},
	"variable": {Enabled: true, DomesticRate: 300, InternationalRate: 900, HasVariants: true,
		VariantShipping: map[string]bool{"print": true}},
	"vendor": {Enabled: true, DomesticRate: 100, InternationalRate: 700, OwnerCountry: "ca"},
}

func newCalc() *Calculator {
	return &Calculator{Profiles: profiles, BaseCountry: "US"}
}

func line(key, product string) cart.Item {
	return cart.Item{Key: key, ProductID: product, Qty: 1, UnitPrice: 1000}
}

func TestDomesticAndInternationalRates(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "A")}, ShippingCountry: "CA"}

	require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	fee, ok := ct.Fees.Get(FeeKey("l1"))
	require.True(t, ok)
	require.Equal(t, int64(2000), fee.Amount)
	require.Equal(t, DefaultLabel, fee.Label)

	ct.ShippingCountry = "US"
	require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	require.Equal(t, 1, ct.Fees.Len())
	fee, _ = ct.Fees.Get(FeeKey("l1"))
	require.Equal(t, int64(500), fee.Amount)
}

func TestRecalculationIsIdempotent(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "A"), line("l2", "A")}}
	ct.Fees.Add(fees.Fee{Key: "volume_discount", Amount: -100})

	for i := 0; i < 3; i++ {
		require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	}
	require.Equal(t, 3, ct.Fees.Len())
	require.Equal(t, int64(1000-100), ct.Fees.Total())

	ct.Items = ct.Items[:1]
	require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	_, ok := ct.Fees.Get(FeeKey("l2"))
	require.False(t, ok)
	_, ok = ct.Fees.Get("volume_discount")
	require.True(t, ok)
}

func TestNoShippableItemsClearsFees(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "digital"), line("l2", "gone")}}
	ct.Fees.Add(fees.Fee{Key: FeeKey("old"), Amount: 500})

	require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	require.Zero(t, ct.Fees.Len())

	needs, err := calc.NeedsShipping(context.Background(), ct)
	require.NoError(t, err)
	require.False(t, needs)
}

func TestZeroRateRegistersNoFee(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "free")}}
	q, err := calc.Quote(context.Background(), ct)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)

	require.NoError(t, calc.OnCartChanged(context.Background(), ct))
	require.Zero(t, ct.Fees.Len())
	needs, _ := calc.NeedsShipping(context.Background(), ct)
	require.True(t, needs)
}

func TestVariantMustOptIntoShipping(t *testing.T) {
	calc := newCalc()
	printed := cart.Item{Key: "l1", ProductID: "variable", VariantID: "print", Qty: 1}
	pdf := cart.Item{Key: "l2", ProductID: "variable", VariantID: "pdf", Qty: 1}

	require.True(t, ItemShippable(profiles["variable"], printed))
	require.False(t, ItemShippable(profiles["variable"], pdf))
	require.False(t, ItemShippable(profiles["variable"], cart.Item{ProductID: "variable"}))

	q, err := calc.Quote(context.Background(), &cart.Cart{Items: []cart.Item{printed, pdf}})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	require.Equal(t, "l1", q.Lines[0].LineKey)
	require.Equal(t, int64(300), q.Total)
}

func TestVendorBaseRegion(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "vendor")}, ShippingCountry: "CA"}

	q, err := calc.Quote(context.Background(), ct)
	require.NoError(t, err)
	require.Equal(t, International, q.Lines[0].Region)

	calc.VendorRegions = true
	q, err = calc.Quote(context.Background(), ct)
	require.NoError(t, err)
	require.Equal(t, Domestic, q.Lines[0].Region)
	require.Equal(t, int64(100), q.Total)
	require.Equal(t, "US", calc.BaseRegion(profiles["A"]))
}

func TestVendorBaseRegionWithUnknownAddress(t *testing.T) {
	calc := newCalc()
	calc.VendorRegions = true
	ct := &cart.Cart{Items: []cart.Item{line("l1", "vendor"), line("l2", "A")}}

	q, err := calc.Quote(context.Background(), ct)
	require.NoError(t, err)
	require.Equal(t, "US", q.Destination)
	require.Len(t, q.Lines, 2)
	require.Equal(t, Domestic, q.Lines[0].Region)
	require.Equal(t, Domestic, q.Lines[1].Region)
	require.Equal(t, int64(100+500), q.Total)

	ct.BuyerCountry = "US"
	q, err = calc.Quote(context.Background(), ct)
	require.NoError(t, err)
	require.Equal(t, International, q.Lines[0].Region)
	require.Equal(t, Domestic, q.Lines[1].Region)
	require.Equal(t, int64(700+500), q.Total)
}

func TestDestinationPrecedence(t *testing.T) {
	calc := newCalc()
	require.Equal(t, "GB", calc.Destination(&cart.Cart{ShippingCountry: "gb", BuyerCountry: "CA"}))
	require.Equal(t, "CA", calc.Destination(&cart.Cart{BuyerCountry: "CA"}))
	require.Equal(t, "US", calc.Destination(&cart.Cart{}))

	require.Equal(t, Domestic, Classify("us", "US"))
	require.Equal(t, Domestic, Classify("", "US"))
	require.Equal(t, International, Classify("CA", "US"))
}

func TestProfileErrorsPropagate(t *testing.T) {
	calc := newCalc()
	ct := &cart.Cart{Items: []cart.Item{line("l1", "broken")}}
	require.Error(t, calc.OnCartChanged(context.Background(), ct))
}
