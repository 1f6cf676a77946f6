package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shipstack/courier-api/internal/domain/promo"
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promocode case-insensitively.
// Returns promo.ErrNotFound when the code does not exist.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Promocode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, discount, active, single_use, uses, created_at
		 FROM promocodes WHERE UPPER(code) = UPPER($1)`,
		code,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "finding promocode %q", code)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromocode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding promocode %q", code)
	}
	return &p, nil
}

// Create persists a new promocode.
func (r *PromoRepository) Create(ctx context.Context, p *promo.Promocode) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promocodes (id, code, discount, active, single_use, uses)
		 VALUES ($1, $2, $3, $4, $5, 0)
		 RETURNING created_at`,
		p.ID, p.Code, p.Discount, p.Active, p.SingleUse,
	).Scan(&p.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating promocode %q", p.Code)
	}
	return nil
}

// SetActive flips the active flag. Returns promo.ErrNotFound for unknown ids.
func (r *PromoRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE promocodes SET active = $2 WHERE id = $1`, id, active,
	)
	if err != nil {
		return errors.Wrapf(err, "toggling promocode %q", id)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// HasUsed reports whether the customer already consumed the promocode.
func (r *PromoRepository) HasUsed(ctx context.Context, promocodeID, customerID string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM promocode_usages
			WHERE promocode_id = $1 AND customer_id = $2
		)`,
		promocodeID, customerID,
	).Scan(&used)
	if err != nil {
		return false, errors.Wrap(err, "checking promocode usage")
	}
	return used, nil
}

func scanPromocode(row pgx.CollectableRow) (promo.Promocode, error) {
	var (
		p    promo.Promocode
		uses int32
	)
	err := row.Scan(&p.ID, &p.Code, &p.Discount, &p.Active, &p.SingleUse, &uses, &p.CreatedAt)
	p.Uses = int(uses)
	return p, err
}
