// Package fees holds the keyed cart fee ledger that shipping and discount
// components write into.
package fees

import (
	"encoding/json"
	"strings"
)

// Fee is a labelled cart adjustment in minor units. Negative amounts are discounts.
type Fee struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Ledger keeps at most one fee per key, preserving insertion order.
// The zero value is ready to use.
type Ledger struct {
	order []string
	byKey map[string]Fee
}

// Add stores f, replacing any fee with the same key in place.
func (l *Ledger) Add(f Fee) {
	if f.Key == "" {
		return
	}
	if l.byKey == nil {
		l.byKey = make(map[string]Fee)
	}
	if _, exists := l.byKey[f.Key]; !exists {
		l.order = append(l.order, f.Key)
	}
	l.byKey[f.Key] = f
}

// Remove deletes the fee stored under key. Missing keys are ignored.
func (l *Ledger) Remove(key string) {
	if _, ok := l.byKey[key]; !ok {
		return
	}
	delete(l.byKey, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// RemovePrefix deletes every fee whose key starts with prefix and reports how many were removed.
func (l *Ledger) RemovePrefix(prefix string) int {
	if len(l.byKey) == 0 {
		return 0
	}
	kept := l.order[:0]
	removed := 0
	for _, k := range l.order {
		if strings.HasPrefix(k, prefix) {
			delete(l.byKey, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	l.order = kept
	return removed
}

// Get returns the fee under key.
func (l *Ledger) Get(key string) (Fee, bool) {
	f, ok := l.byKey[key]
	return f, ok
}

// List returns the fees in insertion order.
func (l *Ledger) List() []Fee {
	out := make([]Fee, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.byKey[k])
	}
	return out
}

// Len returns the number of fees.
func (l *Ledger) Len() int { return len(l.order) }

// Total sums every fee amount.
func (l *Ledger) Total() int64 {
	var total int64
	for _, f := range l.byKey {
		total += f.Amount
	}
	return total
}

// Reset empties the ledger.
func (l *Ledger) Reset() {
	l.order = nil
	l.byKey = nil
}

// MarshalJSON encodes the ledger as an ordered fee array.
func (l Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.List())
}

// UnmarshalJSON rebuilds the ledger from a fee array. Later duplicates win.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var list []Fee
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	l.Reset()
	for _, f := range list {
		l.Add(f)
	}
	return nil
}
