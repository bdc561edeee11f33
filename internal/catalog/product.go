// Package catalog exposes the product metadata the fee components read:
// prices, variants, and per-product shipping profiles.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the product or variant does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidInput is returned for malformed identifiers or payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Product is the subset of a catalog product used by carts and fee calculation.
type Product struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    int64           `json:"price"`
	Variants []Variant       `json:"variants,omitempty"`
	Shipping ShippingProfile `json:"shipping"`
}

// Variant is a price option of a product.
type Variant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// ShippingProfile carries per-product shipping metadata.
type ShippingProfile struct {
	Enabled           bool            `json:"enabled"`
	DomesticRate      int64           `json:"domesticRate"`
	InternationalRate int64           `json:"internationalRate"`
	HasVariants       bool            `json:"hasVariants"`
	VariantShipping   map[string]bool `json:"variantShipping,omitempty"`
	OwnerID           string          `json:"ownerId,omitempty"`
	OwnerCountry      string          `json:"ownerCountry,omitempty"`
}

// VariantShips reports whether the variant opted into shipping.
func (p ShippingProfile) VariantShips(variantID string) bool {
	return p.VariantShipping[variantID]
}

// Variant returns the variant with the given id.
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// UnitPrice resolves the price of the product or of one of its variants.
// Products with variants require a variant id.
func (p Product) UnitPrice(variantID string) (int64, error) {
	if len(p.Variants) == 0 {
		if variantID != "" {
			return 0, fmt.Errorf("product %s has no variants: %w", p.ID, ErrInvalidInput)
		}
		return p.Price, nil
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return 0, fmt.Errorf("variant %q of product %s: %w", variantID, p.ID, ErrNotFound)
	}
	return v.Price, nil
}

// ParseRate converts a decimal amount such as "5" or "19.99" into minor units.
// Empty input is zero. Negative amounts and sub-cent precision are rejected.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("rate %q: %w", s, ErrInvalidInput)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("rate %q must not be negative: %w", s, ErrInvalidInput)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("rate %q has more than two decimals: %w", s, ErrInvalidInput)
	}
	return cents.IntPart(), nil
}

// FormatRate renders minor units as a two-decimal amount.
func FormatRate(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
