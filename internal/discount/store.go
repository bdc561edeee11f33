package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the discount store dependency is not configured.
var ErrStoreUnavailable = errors.New("discount: store unavailable")

// Store provides database accessors for volume discount rules.
type Store interface {
	List(ctx context.Context) ([]Rule, error)
	Get(ctx context.Context, id string) (Rule, error)
	Create(ctx context.Context, r Rule) (Rule, error)
	Update(ctx context.Context, r Rule) (Rule, error)
	Delete(ctx context.Context, id string) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const ruleColumns = `id::text, title, threshold, percent, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.Title, &r.Threshold, &r.Percent, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return r, err
}

// List returns every rule ordered by threshold.
func (s *pgStore) List(ctx context.Context) ([]Rule, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM volume_discounts ORDER BY threshold, id`)
	if err != nil {
		return nil, fmt.Errorf("list volume discounts: %w", err)
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volume discount: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get fetches one rule.
func (s *pgStore) Get(ctx context.Context, id string) (Rule, error) {
	if s == nil || s.pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	return scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM volume_discounts WHERE id = $1`, id))
}

// Create inserts a rule.
func (s *pgStore) Create(ctx context.Context, r Rule) (Rule, error) {
	if s == nil || s.pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	return scanRule(s.pool.QueryRow(ctx, `INSERT INTO volume_discounts (id, title, threshold, percent)
VALUES ($1, $2, $3, $4) RETURNING `+ruleColumns, r.ID, r.Title, r.Threshold, r.Percent))
}

// Update rewrites title, threshold and percent.
func (s *pgStore) Update(ctx context.Context, r Rule) (Rule, error) {
	if s == nil || s.pool == nil {
		return Rule{}, ErrStoreUnavailable
	}
	return scanRule(s.pool.QueryRow(ctx, `UPDATE volume_discounts SET title = $2, threshold = $3, percent = $4, updated_at = now()
WHERE id = $1 RETURNING `+ruleColumns, r.ID, r.Title, r.Threshold, r.Percent))
}

// Delete removes a rule.
func (s *pgStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM volume_discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete volume discount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
