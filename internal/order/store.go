package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-fees/internal/shipping"
)

// ErrStoreUnavailable indicates the order store dependency is not configured.
var ErrStoreUnavailable = errors.New("order: store unavailable")

// Store provides database accessors for orders.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, p ListParams) ([]Order, int64, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateShippingInfo(ctx context.Context, id string, addr shipping.Address) error
	VendorOwns(ctx context.Context, orderID, vendorID string) (bool, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const orderColumns = `id::text, number, user_id, first_name, last_name, email, gateway, status, currency,
subtotal, fees, total, shipping_info, shipping_status, created_at, updated_at`

const shippedRank = `CASE shipping_status WHEN 'none' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		feesRaw  []byte
		shipRaw  []byte
		shipment string
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.FirstName, &o.LastName, &o.Email, &o.Gateway, &o.Status,
		&o.Currency, &o.Subtotal, &feesRaw, &o.Total, &shipRaw, &shipment, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.ShipmentStatus = Status(shipment)
	if len(feesRaw) > 0 {
		if err := json.Unmarshal(feesRaw, &o.Fees); err != nil {
			return Order{}, fmt.Errorf("decode order fees: %w", err)
		}
	}
	addr, ok, err := shipping.DecodeAddress(shipRaw)
	if err != nil {
		return Order{}, fmt.Errorf("decode shipping info: %w", err)
	}
	if ok {
		o.ShippingInfo = &addr
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Create inserts the order and its lines in one transaction.
func (s *pgStore) Create(ctx context.Context, o Order) (Order, error) {
	if s == nil || s.pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	feesRaw, err := json.Marshal(o.Fees)
	if err != nil {
		return Order{}, fmt.Errorf("encode order fees: %w", err)
	}
	var shipRaw []byte
	if o.ShippingInfo != nil {
		if shipRaw, err = json.Marshal(o.ShippingInfo); err != nil {
			return Order{}, fmt.Errorf("encode shipping info: %w", err)
		}
	}
	var created Order
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO orders (id, user_id, first_name, last_name, email, gateway, currency,
    subtotal, fees, total, shipping_info, shipping_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+orderColumns,
			o.ID, o.UserID, o.FirstName, o.LastName, o.Email, o.Gateway, o.Currency,
			o.Subtotal, feesRaw, o.Total, shipRaw, string(o.ShipmentStatus))
		var err error
		if created, err = scanOrder(row); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`INSERT INTO order_items (id, order_id, product_id, variant_id, owner_id, title, qty, unit_price)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, $6, $7, $8)`,
				it.ID, o.ID, it.ProductID, it.VariantID, it.OwnerID, it.Title, it.Qty, it.UnitPrice)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	created.Items = o.Items
	return created, nil
}

// Get loads one order with its lines.
func (s *pgStore) Get(ctx context.Context, id string) (Order, error) {
	if s == nil || s.pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := s.pool.Query(ctx, `SELECT id::text, product_id::text, COALESCE(variant_id::text, ''),
    COALESCE(owner_id::text, ''), title, qty, unit_price
FROM order_items WHERE order_id = $1 ORDER BY title, id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.OwnerID, &it.Title, &it.Qty, &it.UnitPrice); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// List returns one page of orders and the total matching count.
func (s *pgStore) List(ctx context.Context, p ListParams) ([]Order, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	p = p.normalized()
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE ($1 = '' OR shipping_status = $1)`,
		string(p.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE ($1 = '' OR shipping_status = $1)
ORDER BY `+orderBy(p)+`
LIMIT $2 OFFSET $3`, string(p.Status), p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// orderBy builds the ORDER BY clause from whitelisted columns only.
func orderBy(p ListParams) string {
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	switch p.Sort {
	case SortShipped:
		return shippedRank + " " + dir + ", created_at DESC"
	case SortID:
		return "number " + dir
	default:
		return "created_at " + dir + ", number " + dir
	}
}

// ListByStatus returns every order in the status, oldest first.
func (s *pgStore) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE shipping_status = $1 ORDER BY created_at, number`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	return collectOrders(rows)
}

// UpdateStatus writes the shipment status.
func (s *pgStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET shipping_status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateShippingInfo replaces the address snapshot.
func (s *pgStore) UpdateShippingInfo(ctx context.Context, id string, addr shipping.Address) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	raw, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode shipping info: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET shipping_info = $2, updated_at = now() WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("update shipping info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VendorOwns reports whether the order contains a product owned by vendorID.
func (s *pgStore) VendorOwns(ctx context.Context, orderID, vendorID string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	var owns bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE order_id = $1 AND owner_id::text = $2)`,
		orderID, vendorID).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("check vendor order: %w", err)
	}
	return owns, nil
}
