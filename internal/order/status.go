package order

import (
	"fmt"
	"strings"

	"github.com/noah-isme/toko-fees/internal/lifecycle"
)

// Status is the shipment status of an order.
type Status string

const (
	// StatusNone marks orders with nothing to ship.
	StatusNone Status = lifecycle.ShipmentNone
	// StatusPending marks orders waiting to be shipped.
	StatusPending Status = lifecycle.ShipmentPending
	// StatusShipped marks fulfilled orders.
	StatusShipped Status = lifecycle.ShipmentShipped
)

// ParseStatus accepts none, pending or shipped in any case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNone, StatusPending, StatusShipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown shipment status %q: %w", s, ErrInvalidInput)
}

// InitialStatus is pending when the order captured a shipping snapshot, none otherwise.
func InitialStatus(snapshot []byte) Status {
	trimmed := strings.TrimSpace(string(snapshot))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return StatusNone
	}
	return StatusPending
}

// Toggle flips pending and shipped. Orders without shipping cannot be toggled.
func (s Status) Toggle() (Status, error) {
	switch s {
	case StatusPending:
		return StatusShipped, nil
	case StatusShipped:
		return StatusPending, nil
	}
	return s, ErrNotShippable
}

// Label is the "Shipped?" column value.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "No"
	case StatusShipped:
		return "Yes"
	}
	return "N/A"
}
