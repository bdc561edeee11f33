// Package checkout turns a cart session into a placed order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/catalog"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/lifecycle"
	"github.com/noah-isme/toko-fees/internal/obs"
	"github.com/noah-isme/toko-fees/internal/order"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

var (
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartOwner is returned when the cart belongs to another user.
	ErrCartOwner = errors.New("cart does not belong to user")
)

// Stages runs the lifecycle stages checkout depends on.
type Stages interface {
	Recalculate(ctx context.Context, c *cart.Cart) error
	ValidateCheckout(ctx context.Context, c *cart.Cart, form lifecycle.CheckoutForm) ([]lifecycle.FieldError, error)
	OrderCreated(ctx context.Context, c *cart.Cart, form lifecycle.CheckoutForm, draft *lifecycle.OrderDraft) error
}

// OwnerSource resolves the vendor that owns a product.
type OwnerSource interface {
	Profile(ctx context.Context, productID string) (catalog.ShippingProfile, error)
}

// OrderWriter persists placed orders.
type OrderWriter interface {
	Create(ctx context.Context, o order.Order) (order.Order, error)
}

// CartLocker serialises checkouts of the same cart.
type CartLocker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Service places orders.
type Service struct {
	Carts  cart.Store
	Stages Stages
	Owners OwnerSource
	Orders OrderWriter
	Locks  CartLocker
	Log    *zerolog.Logger
	Now    func() time.Time
}

// Input is the checkout request payload.
type Input struct {
	CartID string `json:"cartId" validate:"required,uuid"`
	lifecycle.CheckoutForm
}

// Result summarises the placed order.
type Result struct {
	OrderID        string       `json:"orderId"`
	Number         int64        `json:"number"`
	Currency       string       `json:"currency"`
	Subtotal       int64        `json:"subtotal"`
	Fees           []feeView    `json:"fees"`
	Total          int64        `json:"total"`
	ShipmentStatus order.Status `json:"shipmentStatus"`
}

type feeView struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

func (s *Service) ready() error {
	if s == nil || s.Carts == nil || s.Stages == nil || s.Orders == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

func (s *Service) logger() *zerolog.Logger {
	if s.Log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.Log
}

// Checkout recomputes the cart, validates the form, runs the order-created stage
// and stores the order. The cart session is removed once the order exists.
func (s *Service) Checkout(ctx context.Context, userID string, in Input) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return Result{}, common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, nil)
	}
	if err := common.ValidateStruct(in); err != nil {
		return Result{}, common.NewValidationError("invalid checkout payload", common.FieldProblems(err))
	}
	if s.Locks == nil {
		return s.place(ctx, userID, in)
	}
	var res Result
	err := s.Locks.WithLock(ctx, in.CartID, func(ctx context.Context) error {
		var err error
		res, err = s.place(ctx, userID, in)
		return err
	})
	return res, err
}

func (s *Service) place(ctx context.Context, userID string, in Input) (Result, error) {
	c, err := s.Carts.Load(ctx, in.CartID)
	if err != nil {
		return Result{}, err
	}
	if c.UserID != "" && c.UserID != userID {
		return Result{}, ErrCartOwner
	}
	if err := s.Stages.Recalculate(ctx, c); err != nil {
		return Result{}, fmt.Errorf("recalculate cart: %w", err)
	}
	if c.IsEmpty() {
		return Result{}, ErrEmptyCart
	}
	// An invalid typed country leaves the cart as is; address validation reports it.
	if country := cart.NormalizeCountry(formCountry(in.CheckoutForm, c.NoBillingFields)); country != "" {
		c.ShippingCountry = country
		if err := s.Stages.Recalculate(ctx, c); err != nil {
			return Result{}, fmt.Errorf("recalculate cart: %w", err)
		}
	}

	fieldErrs, err := s.Stages.ValidateCheckout(ctx, c, in.CheckoutForm)
	if err != nil {
		return Result{}, fmt.Errorf("validate checkout: %w", err)
	}
	if len(fieldErrs) > 0 {
		for _, fe := range fieldErrs {
			obs.ObserveValidationFailure(fe.Code)
		}
		return Result{}, common.NewValidationError("checkout validation failed", fieldErrs)
	}

	draft, err := s.draft(ctx, userID, c, in.CheckoutForm)
	if err != nil {
		return Result{}, err
	}
	if err := s.Stages.OrderCreated(ctx, c, in.CheckoutForm, &draft); err != nil {
		return Result{}, fmt.Errorf("order created stage: %w", err)
	}
	o, err := toOrder(draft)
	if err != nil {
		return Result{}, err
	}
	created, err := s.Orders.Create(ctx, o)
	if err != nil {
		return Result{}, fmt.Errorf("store order: %w", err)
	}
	if err := s.Carts.Delete(ctx, c.ID); err != nil {
		s.logger().Warn().Err(err).Str("cart_id", c.ID).Msg("cart cleanup after checkout failed")
	}
	s.logger().Info().
		Str("order_id", created.ID).
		Str("user_id", userID).
		Int64("total", created.Total).
		Str("shipment_status", string(created.ShipmentStatus)).
		Msg("order placed")
	return toResult(created), nil
}

// formCountry is the country typed in the address block that checkout reads.
func formCountry(form lifecycle.CheckoutForm, noBillingFields bool) string {
	if shipping.UsesShippingFields(form, noBillingFields) {
		return form.Shipping.Country
	}
	return form.Billing.Country
}

func (s *Service) draft(ctx context.Context, userID string, c *cart.Cart, form lifecycle.CheckoutForm) (lifecycle.OrderDraft, error) {
	summary := c.Summary()
	d := lifecycle.OrderDraft{
		ID:        uuid.NewString(),
		UserID:    userID,
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Email:     strings.TrimSpace(form.Email),
		Gateway:   c.Gateway,
		Currency:  c.Currency,
		Fees:      summary.Fees,
		Subtotal:  summary.Subtotal,
		Total:     summary.Total,
		Items:     make([]lifecycle.DraftItem, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		owner, err := s.owner(ctx, it.ProductID)
		if err != nil {
			return lifecycle.OrderDraft{}, err
		}
		d.Items = append(d.Items, lifecycle.DraftItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			OwnerID:   owner,
			Title:     it.Title,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return d, nil
}

func (s *Service) owner(ctx context.Context, productID string) (string, error) {
	if s.Owners == nil {
		return "", nil
	}
	p, err := s.Owners.Profile(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("resolve product owner: %w", err)
	}
	return p.OwnerID, nil
}

func toOrder(d lifecycle.OrderDraft) (order.Order, error) {
	addr, ok, err := shipping.DecodeAddress(d.ShippingInfo)
	if err != nil {
		return order.Order{}, fmt.Errorf("decode shipping snapshot: %w", err)
	}
	status := order.Status(d.ShipmentStatus)
	if _, perr := order.ParseStatus(d.ShipmentStatus); perr != nil {
		status = order.InitialStatus(d.ShippingInfo)
	}
	o := order.Order{
		ID:             d.ID,
		UserID:         d.UserID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Gateway:        d.Gateway,
		Currency:       d.Currency,
		Subtotal:       d.Subtotal,
		Fees:           d.Fees,
		Total:          d.Total,
		ShipmentStatus: status,
		Items:          make([]order.Item, 0, len(d.Items)),
	}
	if ok {
		o.ShippingInfo = &addr
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, order.Item{
			ID:        uuid.NewString(),
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			OwnerID:   it.OwnerID,
			Title:     it.Title,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}
	return o, nil
}

func toResult(o order.Order) Result {
	r := Result{
		OrderID:        o.ID,
		Number:         o.Number,
		Currency:       o.Currency,
		Subtotal:       o.Subtotal,
		Total:          o.Total,
		ShipmentStatus: o.ShipmentStatus,
		Fees:           make([]feeView, 0, len(o.Fees)),
	}
	for _, f := range o.Fees {
		r.Fees = append(r.Fees, feeView{Key: f.Key, Label: f.Label, Amount: f.Amount})
	}
	return r
}
