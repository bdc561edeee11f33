package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// Store provides database accessors for product metadata.
type Store interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	UpsertShipping(ctx context.Context, productID string, update ShippingUpdate) error
}

// ShippingUpdate is the normalised write model for product shipping metadata.
type ShippingUpdate struct {
	Enabled           bool
	DomesticRate      int64
	InternationalRate int64
	Variants          map[string]bool
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const selectProduct = `SELECT p.id::text, p.title, p.price,
       COALESCE(s.enabled, false), COALESCE(s.domestic_rate, 0), COALESCE(s.international_rate, 0),
       COALESCE(p.owner_id::text, ''), COALESCE(v.country, '')
FROM products p
LEFT JOIN product_shipping s ON s.product_id = p.id
LEFT JOIN vendors v ON v.id = p.owner_id
WHERE p.id = $1`

const selectVariants = `SELECT pv.id::text, pv.name, pv.price, COALESCE(vs.enabled, false)
FROM product_variants pv
LEFT JOIN product_variant_shipping vs ON vs.variant_id = pv.id
WHERE pv.product_id = $1
ORDER BY pv.name, pv.id`

// GetProduct loads a product with its variants and shipping profile.
func (s *pgStore) GetProduct(ctx context.Context, id string) (Product, error) {
	if s == nil || s.pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	var p Product
	err := s.pool.QueryRow(ctx, selectProduct, id).Scan(
		&p.ID, &p.Title, &p.Price,
		&p.Shipping.Enabled, &p.Shipping.DomesticRate, &p.Shipping.InternationalRate,
		&p.Shipping.OwnerID, &p.Shipping.OwnerCountry,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectVariants, id)
	if err != nil {
		return Product{}, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v     Variant
			ships bool
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Price, &ships); err != nil {
			return Product{}, fmt.Errorf("scan variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
		if ships {
			if p.Shipping.VariantShipping == nil {
				p.Shipping.VariantShipping = make(map[string]bool)
			}
			p.Shipping.VariantShipping[v.ID] = true
		}
	}
	if err := rows.Err(); err != nil {
		return Product{}, fmt.Errorf("iterate variants: %w", err)
	}
	p.Shipping.HasVariants = len(p.Variants) > 0
	return p, nil
}

// UpsertShipping writes product and variant shipping flags in one transaction.
func (s *pgStore) UpsertShipping(ctx context.Context, productID string, update ShippingUpdate) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		_, err := tx.Exec(ctx, `INSERT INTO product_shipping (product_id, enabled, domestic_rate, international_rate, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (product_id) DO UPDATE SET enabled = EXCLUDED.enabled, domestic_rate = EXCLUDED.domestic_rate,
    international_rate = EXCLUDED.international_rate, updated_at = now()`,
			productID, update.Enabled, update.DomesticRate, update.InternationalRate)
		if err != nil {
			return fmt.Errorf("upsert product shipping: %w", err)
		}
		for variantID, enabled := range update.Variants {
			tag, err := tx.Exec(ctx, `INSERT INTO product_variant_shipping (variant_id, product_id, enabled)
SELECT pv.id, pv.product_id, $3 FROM product_variants pv WHERE pv.id = $1 AND pv.product_id = $2
ON CONFLICT (variant_id) DO UPDATE SET enabled = EXCLUDED.enabled`, variantID, productID, enabled)
			if err != nil {
				return fmt.Errorf("upsert variant shipping: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
			}
		}
		return nil
	})
}
