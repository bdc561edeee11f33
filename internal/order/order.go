// Package order tracks the shipment status of placed orders and lets admins
// and vendors mark them shipped.
package order

import (
	"errors"
	"time"

	"github.com/noah-isme/toko-fees/internal/fees"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidInput is returned for malformed identifiers or payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotShippable is returned when changing the shipment status of an order without shipping.
	ErrNotShippable = errors.New("order has no shipping")
	// ErrForbidden is returned when the actor may not change the order.
	ErrForbidden = errors.New("not allowed to change this order")
)

// Order is a placed order with its shipment tracking state.
type Order struct {
	ID             string            `json:"id"`
	Number         int64             `json:"number"`
	UserID         string            `json:"userId"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Email          string            `json:"email"`
	Gateway        string            `json:"gateway"`
	Status         string            `json:"status"`
	Currency       string            `json:"currency"`
	Subtotal       int64             `json:"subtotal"`
	Fees           []fees.Fee        `json:"fees"`
	Total          int64             `json:"total"`
	ShippingInfo   *shipping.Address `json:"shippingInfo,omitempty"`
	ShipmentStatus Status            `json:"shipmentStatus"`
	Items          []Item            `json:"items,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Item is an order line with the vendor that owns its product.
type Item struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	OwnerID   string `json:"ownerId,omitempty"`
	Title     string `json:"title"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// Column describes one admin list column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Columns lists the admin order table columns. "Shipped?" sits right before "Status".
var Columns = []Column{
	{Key: "id", Label: "ID"},
	{Key: "email", Label: "Email"},
	{Key: "details", Label: "Details"},
	{Key: "amount", Label: "Price"},
	{Key: "date", Label: "Date"},
	{Key: "user", Label: "User"},
	{Key: "shipped", Label: "Shipped?"},
	{Key: "status", Label: "Status"},
}

// SortColumn names the sortable list columns.
type SortColumn string

const (
	SortDate    SortColumn = "date"
	SortID      SortColumn = "id"
	SortShipped SortColumn = "shipped"
)

// ListParams filters and orders the admin order list.
type ListParams struct {
	Status  Status
	Sort    SortColumn
	Desc    bool
	Page    int
	PerPage int
}

func (p ListParams) normalized() ListParams {
	switch p.Sort {
	case SortDate, SortID, SortShipped:
	default:
		p.Sort = SortDate
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
	return p
}

// ListResult is one page of orders.
type ListResult struct {
	Orders []Order
	Total  int64
	Page   int
	Limit  int
}
