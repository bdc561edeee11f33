package lifecycle

import (
	"encoding/json"

	"github.com/noah-isme/toko-fees/internal/fees"
)

// Shipment status values recorded on orders.
const (
	ShipmentNone    = "none"
	ShipmentPending = "pending"
	ShipmentShipped = "shipped"
)

// AddressFields is one address block of the checkout form.
type AddressFields struct {
	Address  string `json:"address"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	StateUS  string `json:"stateUs"`
	StateCA  string `json:"stateCa"`
	State    string `json:"state"`
}

// IsZero reports whether no field was filled in.
func (a AddressFields) IsZero() bool {
	return a == AddressFields{}
}

// CheckoutForm is the buyer-submitted checkout payload.
type CheckoutForm struct {
	FirstName string `json:"firstName" validate:"required,max=120"`
	LastName  string `json:"lastName" validate:"max=120"`
	Email     string `json:"email" validate:"required,email"`
	// UseDifferentShipping selects the Shipping block instead of Billing.
	UseDifferentShipping bool          `json:"useDifferentShipping"`
	Billing              AddressFields `json:"billing"`
	Shipping             AddressFields `json:"shipping"`
}

// FieldError is one checkout validation failure.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DraftItem is an order line captured at checkout.
type DraftItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	OwnerID   string `json:"ownerId,omitempty"`
	Title     string `json:"title"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// OrderDraft is the order under construction during checkout.
type OrderDraft struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Gateway   string
	Currency  string
	Items     []DraftItem
	Fees      []fees.Fee
	Subtotal  int64
	Total     int64
	// ShippingInfo is the JSON address snapshot. Nil when nothing ships.
	ShippingInfo json.RawMessage
	// ShipmentStatus is one of the Shipment* values.
	ShipmentStatus string
}

// OrderView is the read model handed to renderers.
type OrderView struct {
	ID           string
	ShippingInfo json.RawMessage
}
