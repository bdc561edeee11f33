// Package cart keeps shopper carts as Redis sessions and triggers fee
// recalculation whenever the cart contents or checkout selections change.
package cart

import (
	"strings"
	"time"

	"github.com/noah-isme/toko-fees/internal/fees"
	"github.com/noah-isme/toko-fees/internal/pricing"
)

// Item is one cart line. Key is stable for the lifetime of the line.
type Item struct {
	Key       string `json:"key"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Title     string `json:"title"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// Subtotal returns qty × unit price.
func (i Item) Subtotal() int64 {
	return pricing.Subtotal([]pricing.Item{{Qty: i.Qty, UnitPrice: i.UnitPrice}})
}

// Cart is the session state of one shopper.
type Cart struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
	Items  []Item `json:"items"`
	// Fees is rebuilt by the recalculation stage; callers never edit it directly.
	Fees fees.Ledger `json:"fees"`
	// ShippingCountry is the country typed in the checkout form.
	ShippingCountry string `json:"shippingCountry,omitempty"`
	// BuyerCountry is the country stored on the buyer's profile.
	BuyerCountry string `json:"buyerCountry,omitempty"`
	Gateway      string `json:"gateway,omitempty"`
	// NoBillingFields is set for gateways whose checkout form omits billing address fields.
	NoBillingFields bool      `json:"noBillingFields,omitempty"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Subtotal sums every line.
func (c *Cart) Subtotal() int64 {
	return pricing.Subtotal(c.pricingItems())
}

// ItemCount is the sum of line quantities, not the number of lines. Volume
// discount thresholds count units.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		if it.Qty > 0 {
			n += it.Qty
		}
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Summary computes totals from the current lines and fee ledger.
func (c *Cart) Summary() pricing.Summary {
	s := pricing.Compute(c.pricingItems(), c.Fees.List())
	s.Currency = c.Currency
	return s
}

// Item returns the line with the given key.
func (c *Cart) Item(key string) (Item, bool) {
	for _, it := range c.Items {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Cart) indexOf(key string) int {
	for i, it := range c.Items {
		if it.Key == key {
			return i
		}
	}
	return -1
}

func (c *Cart) findLine(productID, variantID string) int {
	for i, it := range c.Items {
		if strings.EqualFold(it.ProductID, productID) && strings.EqualFold(it.VariantID, variantID) {
			return i
		}
	}
	return -1
}

func (c *Cart) pricingItems() []pricing.Item {
	out := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}
