// Package shipping computes per-line shipping fees, validates and captures the
// checkout shipping address, and renders it back on order views.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/fees"
)

// FeePrefix prefixes every shipping fee key; the line key follows it.
const FeePrefix = "shipping_"

// DefaultLabel is the fee label used when none is configured.
const DefaultLabel = "Shipping Costs"

// Region classifies a destination relative to a base country.
type Region string

const (
	Domestic      Region = "domestic"
	International Region = "international"
)

// ProfileSource resolves product shipping profiles.
type ProfileSource interface {
	Profile(ctx context.Context, productID string) (catalog.ShippingProfile, error)
}

// Calculator turns cart lines into shipping fees.
type Calculator struct {
	Profiles ProfileSource
	// BaseCountry is the store-wide base region.
	BaseCountry string
	// VendorRegions makes the product owner's country the base region when it is known.
	VendorRegions bool
	Label         string
	Log           *zerolog.Logger
}

// QuoteLine is the shipping charge of one shippable cart line.
type QuoteLine struct {
	LineKey   string `json:"lineKey"`
	ProductID string `json:"productId"`
	Region    Region `json:"region"`
	Amount    int64  `json:"amount"`
}

// Quote is the shipping result for a whole cart.
type Quote struct {
	Destination string      `json:"destination"`
	Lines       []QuoteLine `json:"lines"`
	Total       int64       `json:"total"`
}

// FeeKey returns the ledger key of a cart line's shipping fee.
func FeeKey(lineKey string) string { return FeePrefix + lineKey }

// ItemShippable reports whether a line ships. Products with variants ship only
// when the selected variant opted in.
func ItemShippable(profile catalog.ShippingProfile, item cart.Item) bool {
	if !profile.Enabled {
		return false
	}
	if profile.HasVariants {
		return item.VariantID != "" && profile.VariantShips(item.VariantID)
	}
	return true
}

// Classify compares destination and base case-insensitively.
// An unknown destination is domestic.
func Classify(destination, base string) Region {
	destination = strings.TrimSpace(destination)
	if destination == "" || strings.EqualFold(destination, strings.TrimSpace(base)) {
		return Domestic
	}
	return International
}

// BaseRegion returns the country that counts as domestic for the product.
func (c *Calculator) BaseRegion(profile catalog.ShippingProfile) string {
	if c.VendorRegions && strings.TrimSpace(profile.OwnerCountry) != "" {
		return strings.ToUpper(strings.TrimSpace(profile.OwnerCountry))
	}
	return strings.ToUpper(strings.TrimSpace(c.BaseCountry))
}

// Destination picks the selected shipping country, then the buyer's stored
// country, then the store base country.
func (c *Calculator) Destination(ct *cart.Cart) string {
	if v := buyerDestination(ct); v != "" {
		return v
	}
	return strings.ToUpper(strings.TrimSpace(c.BaseCountry))
}

// buyerDestination is the country the buyer chose or has on file, or "" when unknown.
func buyerDestination(ct *cart.Cart) string {
	for _, candidate := range []string{ct.ShippingCountry, ct.BuyerCountry} {
		if v := strings.ToUpper(strings.TrimSpace(candidate)); v != "" {
			return v
		}
	}
	return ""
}

// Quote computes the shipping charge of every shippable line without touching the cart.
func (c *Calculator) Quote(ctx context.Context, ct *cart.Cart) (Quote, error) {
	q := Quote{Destination: c.Destination(ct), Lines: []QuoteLine{}}
	buyer := buyerDestination(ct)
	for _, item := range ct.Items {
		profile, ok, err := c.profile(ctx, item)
		if err != nil {
			return Quote{}, err
		}
		if !ok || !ItemShippable(profile, item) {
			continue
		}
		// An unknown address ships from the line's own base region.
		base := c.BaseRegion(profile)
		dest := buyer
		if dest == "" {
			dest = base
		}
		region := Classify(dest, base)
		amount := profile.DomesticRate
		if region == International {
			amount = profile.InternationalRate
		}
		q.Lines = append(q.Lines, QuoteLine{
			LineKey:   item.Key,
			ProductID: item.ProductID,
			Region:    region,
			Amount:    amount,
		})
		q.Total += amount
	}
	return q, nil
}

// NeedsShipping reports whether any line in the cart ships.
func (c *Calculator) NeedsShipping(ctx context.Context, ct *cart.Cart) (bool, error) {
	for _, item := range ct.Items {
		profile, ok, err := c.profile(ctx, item)
		if err != nil {
			return false, err
		}
		if ok && ItemShippable(profile, item) {
			return true, nil
		}
	}
	return false, nil
}

// Name identifies the component in metrics and errors.
func (c *Calculator) Name() string { return "shipping" }

// OnCartChanged replaces every shipping fee with one fee per shippable line.
// Lines with a zero rate get no fee.
func (c *Calculator) OnCartChanged(ctx context.Context, ct *cart.Cart) error {
	q, err := c.Quote(ctx, ct)
	if err != nil {
		return err
	}
	ct.Fees.RemovePrefix(FeePrefix)
	for _, line := range q.Lines {
		if line.Amount == 0 {
			continue
		}
		ct.Fees.Add(fees.Fee{Key: FeeKey(line.LineKey), Label: c.label(), Amount: line.Amount})
	}
	if c.Log != nil {
		c.Log.Debug().Str("cart_id", ct.ID).Str("destination", q.Destination).
			Int("lines", len(q.Lines)).Int64("total", q.Total).Msg("shipping fees recalculated")
	}
	return nil
}

func (c *Calculator) label() string {
	if strings.TrimSpace(c.Label) == "" {
		return DefaultLabel
	}
	return c.Label
}

// profile loads the shipping profile of a line. Products missing from the
// catalog are reported as not found rather than as an error.
func (c *Calculator) profile(ctx context.Context, item cart.Item) (catalog.ShippingProfile, bool, error) {
	if c.Profiles == nil {
		return catalog.ShippingProfile{}, false, errors.New("shipping profiles not configured")
	}
	profile, err := c.Profiles.Profile(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.ShippingProfile{}, false, nil
		}
		return catalog.ShippingProfile{}, false, fmt.Errorf("load shipping profile %s: %w", item.ProductID, err)
	}
	return profile, true, nil
}
