package pricing

import "github.com/noah-isme/toko-fees/internal/fees"

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal  Money      `json:"subtotal"`
	Fees      []fees.Fee `json:"fees"`
	Charges   Money      `json:"charges"`
	Discounts Money      `json:"discounts"`
	Total     Money      `json:"total"`
	Currency  string     `json:"currency,omitempty"`
}

// Subtotal sums qty × unit price over lines with a positive quantity.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute totals the cart: subtotal plus every fee. Negative fees are reported as discounts.
// The total never drops below zero.
func Compute(items []Item, ledger []fees.Fee) Summary {
	s := Summary{Subtotal: Subtotal(items), Fees: ledger}
	if s.Fees == nil {
		s.Fees = []fees.Fee{}
	}
	for _, f := range ledger {
		if f.Amount < 0 {
			s.Discounts += -f.Amount
		} else {
			s.Charges += f.Amount
		}
	}
	s.Total = s.Subtotal + s.Charges - s.Discounts
	if s.Total < 0 {
		s.Total = 0
	}
	return s
}
