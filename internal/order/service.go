package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/lifecycle"
	"github.com/noah-isme/toko-fees/internal/obs"
	"github.com/noah-isme/toko-fees/internal/shipping"
)

// Actor is the caller changing an order.
type Actor struct {
	UserID string
	Admin  bool
	Vendor bool
}

// ActorFromContext reads the caller identity and roles placed by the auth middleware.
func ActorFromContext(ctx context.Context) Actor {
	id, _ := common.UserID(ctx)
	return Actor{
		UserID: id,
		Admin:  common.HasRole(ctx, common.RoleAdmin),
		Vendor: common.HasRole(ctx, common.RoleVendor),
	}
}

func (a Actor) label() string {
	switch {
	case a.Admin:
		return common.RoleAdmin
	case a.Vendor:
		return common.RoleVendor
	}
	return "unknown"
}

// Service tracks shipment status changes.
type Service struct {
	Store    Store
	Renderer lifecycle.OrderRenderer
	Log      *zerolog.Logger
}

// Detail is an order with its rendered shipping lines.
type Detail struct {
	Order
	ShippingLines []string `json:"shippingLines"`
	ShippedLabel  string   `json:"shipped"`
}

// BulkOutcome reports what happened to one order of a bulk update.
type BulkOutcome struct {
	ID     string `json:"id"`
	Status Status `json:"status,omitempty"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Bulk outcome results.
const (
	BulkUpdated = "updated"
	BulkSkipped = "skipped"
	BulkFailed  = "failed"
)

// AddressInput is the admin correction payload for a shipping snapshot.
type AddressInput struct {
	Address  string `json:"address" validate:"required,max=255"`
	Address2 string `json:"address2" validate:"max=255"`
	City     string `json:"city" validate:"required,max=120"`
	State    string `json:"state" validate:"max=120"`
	Zip      string `json:"zip" validate:"required,max=32"`
	Country  string `json:"country" validate:"required,len=2,alpha"`
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("order service not configured")
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

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("parse order id: %w", ErrInvalidInput)
	}
	return parsed.String(), nil
}

// Authorize returns the canonical order id when actor may change the order's
// shipment status: admins always, vendors when the order holds one of their products.
func (s *Service) Authorize(ctx context.Context, actor Actor, orderID string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	id, err := parseID(orderID)
	if err != nil {
		return "", err
	}
	if actor.Admin {
		return id, nil
	}
	if !actor.Vendor || actor.UserID == "" {
		return "", ErrForbidden
	}
	owns, err := s.Store.VendorOwns(ctx, id, actor.UserID)
	if err != nil {
		return "", err
	}
	if !owns {
		return "", ErrForbidden
	}
	return id, nil
}

// Toggle flips pending and shipped. Admins may toggle any order; vendors only
// orders that contain one of their products.
func (s *Service) Toggle(ctx context.Context, actor Actor, orderID string) (Status, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	id, err := s.Authorize(ctx, actor, orderID)
	if err != nil {
		return "", err
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	next, err := o.ShipmentStatus.Toggle()
	if err != nil {
		return o.ShipmentStatus, err
	}
	if err := s.Store.UpdateStatus(ctx, id, next); err != nil {
		return "", err
	}
	obs.ObserveShipmentChange(actor.label(), string(next))
	s.logger().Info().Str("order_id", id).Str("actor", actor.UserID).Str("status", string(next)).Msg("shipment status toggled")
	return next, nil
}

// SetShipped applies the admin checkbox. Orders without shipping are left as they are.
func (s *Service) SetShipped(ctx context.Context, orderID string, shipped bool) (Status, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	id, err := parseID(orderID)
	if err != nil {
		return "", err
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.setShipped(ctx, o, shipped)
}

func (s *Service) setShipped(ctx context.Context, o Order, shipped bool) (Status, error) {
	if o.ShipmentStatus == StatusNone {
		return StatusNone, nil
	}
	next := StatusPending
	if shipped {
		next = StatusShipped
	}
	if next == o.ShipmentStatus {
		return next, nil
	}
	if err := s.Store.UpdateStatus(ctx, o.ID, next); err != nil {
		return "", err
	}
	obs.ObserveShipmentChange(common.RoleAdmin, string(next))
	s.logger().Info().Str("order_id", o.ID).Str("status", string(next)).Msg("shipment status set")
	return next, nil
}

// BulkSetShipped applies SetShipped to every id and reports each outcome.
func (s *Service) BulkSetShipped(ctx context.Context, ids []string, shipped bool) ([]BulkOutcome, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no order ids: %w", ErrInvalidInput)
	}
	out := make([]BulkOutcome, 0, len(ids))
	for _, raw := range ids {
		res := BulkOutcome{ID: raw}
		id, err := parseID(raw)
		if err != nil {
			res.Result, res.Error = BulkFailed, err.Error()
			out = append(out, res)
			continue
		}
		res.ID = id
		o, err := s.Store.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			res.Result, res.Error = BulkFailed, err.Error()
			out = append(out, res)
			continue
		}
		if o.ShipmentStatus == StatusNone {
			res.Status, res.Result = StatusNone, BulkSkipped
			out = append(out, res)
			continue
		}
		st, err := s.setShipped(ctx, o, shipped)
		if err != nil {
			res.Result, res.Error = BulkFailed, err.Error()
		} else {
			res.Status, res.Result = st, BulkUpdated
		}
		out = append(out, res)
	}
	return out, nil
}

// List returns one page of orders.
func (s *Service) List(ctx context.Context, p ListParams) (ListResult, error) {
	if err := s.ready(); err != nil {
		return ListResult{}, err
	}
	p = p.normalized()
	orders, total, err := s.Store.List(ctx, p)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Orders: orders, Total: total, Page: p.Page, Limit: p.PerPage}, nil
}

// Get returns an order with its rendered shipping details.
func (s *Service) Get(ctx context.Context, orderID string) (Detail, error) {
	if err := s.ready(); err != nil {
		return Detail{}, err
	}
	id, err := parseID(orderID)
	if err != nil {
		return Detail{}, err
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(o), nil
}

func (s *Service) detail(o Order) Detail {
	d := Detail{Order: o, ShippedLabel: o.ShipmentStatus.Label()}
	if s.Renderer == nil || o.ShippingInfo == nil {
		return d
	}
	raw, err := json.Marshal(o.ShippingInfo)
	if err != nil {
		return d
	}
	d.ShippingLines = s.Renderer.RenderOrder(lifecycle.OrderView{ID: o.ID, ShippingInfo: raw})
	return d
}

// UpdateAddress corrects the shipping snapshot of an order that ships.
func (s *Service) UpdateAddress(ctx context.Context, orderID string, in AddressInput) (Detail, error) {
	if err := s.ready(); err != nil {
		return Detail{}, err
	}
	id, err := parseID(orderID)
	if err != nil {
		return Detail{}, err
	}
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if err := common.ValidateStruct(in); err != nil {
		return Detail{}, common.NewValidationError("invalid shipping address", common.FieldProblems(err))
	}
	if shipping.StatefulCountry(in.Country) && strings.TrimSpace(in.State) == "" {
		return Detail{}, common.NewValidationError("invalid shipping address",
			[]common.FieldProblem{{Field: "state", Rule: "required_for_country", Param: in.Country}})
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if o.ShipmentStatus == StatusNone {
		return Detail{}, ErrNotShippable
	}
	addr := shipping.Address{
		Address:  strings.TrimSpace(in.Address),
		Address2: strings.TrimSpace(in.Address2),
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		Zip:      strings.TrimSpace(in.Zip),
		Country:  in.Country,
	}
	if err := s.Store.UpdateShippingInfo(ctx, id, addr); err != nil {
		return Detail{}, err
	}
	o.ShippingInfo = &addr
	s.logger().Info().Str("order_id", id).Msg("shipping address corrected")
	return s.detail(o), nil
}

// Pending returns every order waiting to be shipped.
func (s *Service) Pending(ctx context.Context) ([]Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Store.ListByStatus(ctx, StatusPending)
}
