// Package discount applies volume discounts: one percentage-off rule chosen by
// cart item count, registered as a negative cart fee.
package discount

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FeeKey is the single ledger key of the active volume discount.
const FeeKey = "volume_discount"

var (
	// ErrNotFound indicates the rule does not exist.
	ErrNotFound = errors.New("volume discount not found")
	// ErrInvalidInput is returned for malformed identifiers or payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Rule grants Percent off the subtotal once the cart holds at least Threshold items.
type Rule struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Threshold int       `json:"threshold"`
	Percent   int       `json:"percent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Select returns the rule with the greatest threshold not above count.
// Equal thresholds prefer the larger percent, then the smaller id.
func Select(rules []Rule, count int) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, r := range rules {
		if r.Threshold < 1 || r.Threshold > count {
			continue
		}
		if !found || better(r, best) {
			best, found = r, true
		}
	}
	return best, found
}

func better(a, b Rule) bool {
	if a.Threshold != b.Threshold {
		return a.Threshold > b.Threshold
	}
	if a.Percent != b.Percent {
		return a.Percent > b.Percent
	}
	return a.ID < b.ID
}

// Amount returns the negative fee for percent off subtotal, rounded half away from zero to the cent.
func Amount(subtotal int64, percent int) int64 {
	if subtotal <= 0 || percent <= 0 {
		return 0
	}
	off := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return off.Neg().IntPart()
}
