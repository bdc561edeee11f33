package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/common"
)

// Service reads products through the Redis cache and edits shipping metadata.
type Service struct {
	store Store
	cache *Cache
	log   *zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(store Store, cache *Cache, log *zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{store: store, cache: cache, log: log}, nil
}

// ShippingInput is the admin payload for product shipping metadata.
// Rates are decimal amounts in the store currency.
type ShippingInput struct {
	Enabled       bool            `json:"enabled"`
	Domestic      string          `json:"domestic" validate:"omitempty,numeric"`
	International string          `json:"international" validate:"omitempty,numeric"`
	Variants      map[string]bool `json:"variants"`
}

// ShippingView is the admin representation of a product shipping profile.
type ShippingView struct {
	ProductID     string          `json:"productId"`
	Title         string          `json:"title"`
	Enabled       bool            `json:"enabled"`
	Domestic      string          `json:"domestic"`
	International string          `json:"international"`
	Variants      []VariantToggle `json:"variants"`
	OwnerID       string          `json:"ownerId,omitempty"`
	OwnerCountry  string          `json:"ownerCountry,omitempty"`
}

// VariantToggle shows whether a variant ships.
type VariantToggle struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Product returns the product, preferring the cache.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, fmt.Errorf("parse product id: %w", ErrInvalidInput)
	}
	if p, ok, err := s.cache.Get(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("product_id", id).Msg("catalog cache read failed")
	} else if ok {
		return p, nil
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// Profile returns the shipping profile of a product.
func (s *Service) Profile(ctx context.Context, productID string) (ShippingProfile, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return ShippingProfile{}, err
	}
	return p.Shipping, nil
}

// Shipping returns the admin view of a product's shipping metadata.
func (s *Service) Shipping(ctx context.Context, productID string) (ShippingView, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return ShippingView{}, err
	}
	return shippingView(p), nil
}

// UpdateShipping validates and stores product shipping metadata, then drops the cached product.
func (s *Service) UpdateShipping(ctx context.Context, productID string, in ShippingInput) (ShippingView, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return ShippingView{}, fmt.Errorf("parse product id: %w", ErrInvalidInput)
	}
	if err := common.ValidateStruct(in); err != nil {
		return ShippingView{}, common.NewValidationError("invalid shipping metadata", common.FieldProblems(err))
	}
	domestic, err := ParseRate(in.Domestic)
	if err != nil {
		return ShippingView{}, common.NewValidationError("invalid domestic rate", []common.FieldProblem{{Field: "domestic", Rule: "rate"}})
	}
	international, err := ParseRate(in.International)
	if err != nil {
		return ShippingView{}, common.NewValidationError("invalid international rate", []common.FieldProblem{{Field: "international", Rule: "rate"}})
	}
	variants := make(map[string]bool, len(in.Variants))
	for id, enabled := range in.Variants {
		vid, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return ShippingView{}, common.NewValidationError("invalid variant id", []common.FieldProblem{{Field: "variants", Rule: "uuid", Param: id}})
		}
		variants[vid.String()] = enabled
	}
	update := ShippingUpdate{
		Enabled:           in.Enabled,
		DomesticRate:      domestic,
		InternationalRate: international,
		Variants:          variants,
	}
	if err := s.store.UpsertShipping(ctx, productID, update); err != nil {
		return ShippingView{}, err
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.log.Warn().Err(err).Str("product_id", productID).Msg("catalog cache invalidate failed")
	}
	s.log.Info().Str("product_id", productID).Bool("enabled", in.Enabled).
		Int64("domestic", domestic).Int64("international", international).
		Msg("product shipping updated")
	return s.Shipping(ctx, productID)
}

func shippingView(p Product) ShippingView {
	view := ShippingView{
		ProductID:     p.ID,
		Title:         p.Title,
		Enabled:       p.Shipping.Enabled,
		Domestic:      FormatRate(p.Shipping.DomesticRate),
		International: FormatRate(p.Shipping.InternationalRate),
		Variants:      make([]VariantToggle, 0, len(p.Variants)),
		OwnerID:       p.Shipping.OwnerID,
		OwnerCountry:  p.Shipping.OwnerCountry,
	}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, VariantToggle{ID: v.ID, Name: v.Name, Enabled: p.Shipping.VariantShips(v.ID)})
	}
	return view
}
