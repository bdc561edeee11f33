package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-fees/internal/catalog"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrItemNotFound indicates the line key does not exist in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// Recalculator rebuilds the fees of a cart after it changed.
type Recalculator interface {
	Recalculate(ctx context.Context, c *Cart) error
}

// ProductSource resolves the product behind a cart line.
type ProductSource interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store    Store
	Products ProductSource
	Recalc   Recalculator
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// CreateInput starts a cart session.
type CreateInput struct {
	UserID       string
	BuyerCountry string
}

// AddItemInput adds qty units of a product or one of its variants.
type AddItemInput struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Qty       int    `json:"qty"`
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	country := NormalizeCountry(in.BuyerCountry)
	if in.BuyerCountry != "" && country == "" {
		return nil, fmt.Errorf("buyer country must be a two-letter code: %w", ErrInvalidInput)
	}
	now := s.now()
	c := &Cart{
		ID:           uuid.NewString(),
		UserID:       strings.TrimSpace(in.UserID),
		Items:        []Item{},
		BuyerCountry: country,
		Currency:     s.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	return s.Store.Load(ctx, id)
}

// AddItem inserts a line or increments the line holding the same product and variant.
func (s *Service) AddItem(ctx context.Context, id string, in AddItemInput) (*Cart, error) {
	if in.Qty <= 0 {
		return nil, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if s.Products == nil {
		return nil, errors.New("cart product source not configured")
	}
	product, err := s.Products.Product(ctx, strings.TrimSpace(in.ProductID))
	if err != nil {
		return nil, err
	}
	variantID := strings.ToLower(strings.TrimSpace(in.VariantID))
	price, err := product.UnitPrice(variantID)
	if err != nil {
		return nil, err
	}
	title := product.Title
	if v, ok := product.Variant(variantID); ok {
		title = product.Title + " - " + v.Name
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		if i := c.findLine(product.ID, variantID); i >= 0 {
			c.Items[i].Qty += in.Qty
			c.Items[i].UnitPrice = price
			return nil
		}
		c.Items = append(c.Items, Item{
			Key:       uuid.NewString(),
			ProductID: product.ID,
			VariantID: variantID,
			Title:     title,
			Qty:       in.Qty,
			UnitPrice: price,
		})
		return nil
	})
}

// UpdateQty sets the quantity of a line. Zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, id, key string, qty int) (*Cart, error) {
	if qty < 0 {
		return nil, fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		i := c.indexOf(key)
		if i < 0 {
			return ErrItemNotFound
		}
		if qty == 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
		c.Items[i].Qty = qty
		return nil
	})
}

// RemoveItem drops one line.
func (s *Service) RemoveItem(ctx context.Context, id, key string) (*Cart, error) {
	return s.UpdateQty(ctx, id, key, 0)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Items = []Item{}
		return nil
	})
}

// SetDestination stores the shipping country typed at checkout. An empty country clears it.
func (s *Service) SetDestination(ctx context.Context, id, country string) (*Cart, error) {
	code := NormalizeCountry(country)
	if strings.TrimSpace(country) != "" && code == "" {
		return nil, fmt.Errorf("country must be a two-letter code: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		c.ShippingCountry = code
		return nil
	})
}

// SelectGateway records the chosen payment gateway and whether its form carries billing fields.
func (s *Service) SelectGateway(ctx context.Context, id, gateway string, billingFields bool) (*Cart, error) {
	gateway = strings.TrimSpace(gateway)
	if gateway == "" {
		return nil, fmt.Errorf("gateway is required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Gateway = gateway
		c.NoBillingFields = !billingFields
		return nil
	})
}

// Refresh recomputes fees without changing the cart contents.
func (s *Service) Refresh(ctx context.Context, id string) (*Cart, error) {
	return s.mutate(ctx, id, func(*Cart) error { return nil })
}

// Delete ends the cart session.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Store.Delete(ctx, id)
}

// mutate loads the cart, applies fn, rebuilds fees and saves it.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if s.Recalc != nil {
		if err := s.Recalc.Recalculate(ctx, c); err != nil {
			return nil, fmt.Errorf("recalculate cart fees: %w", err)
		}
	}
	c.UpdatedAt = s.now()
	if err := s.Store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// NormalizeCountry returns the upper-case two-letter code, or "" when country is not one.
func NormalizeCountry(country string) string {
	code := strings.ToUpper(strings.TrimSpace(country))
	if len(code) != 2 {
		return ""
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return code
}
