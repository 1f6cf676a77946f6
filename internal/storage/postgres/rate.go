package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/rate"
)

var _ rate.Repository = (*RateRepository)(nil)

// RateRepository implements rate.Repository backed by PostgreSQL. Rate lists
// are one row each; bracket prices live in rate_prices. The list with a NULL
// customer_id is the global default.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository returns a RateRepository that uses the given pool.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// PriceFor returns the customer's price for the bracket, or nil when the
// customer has no rate list or no price for that bracket.
func (r *RateRepository) PriceFor(ctx context.Context, customerID string, bracket decimal.Decimal) (*decimal.Decimal, error) {
	return r.priceWhere(ctx,
		`SELECT p.price FROM rate_prices p
		 JOIN rate_lists l ON l.id = p.rate_list_id
		 WHERE l.customer_id = $1 AND p.bracket_kg = $2`,
		customerID, bracket,
	)
}

// DefaultPriceFor returns the default rate list's price for the bracket,
// or nil when the default has no price for it.
func (r *RateRepository) DefaultPriceFor(ctx context.Context, bracket decimal.Decimal) (*decimal.Decimal, error) {
	return r.priceWhere(ctx,
		`SELECT p.price FROM rate_prices p
		 JOIN rate_lists l ON l.id = p.rate_list_id
		 WHERE l.customer_id IS NULL AND p.bracket_kg = $1`,
		bracket,
	)
}

func (r *RateRepository) priceWhere(ctx context.Context, sql string, args ...any) (*decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "rate price lookup")
	}
	return &price, nil
}

// UpsertList replaces the rate list for the given customer (nil for the
// global default) with the supplied bracket prices, in one transaction.
// Brackets absent from prices end up with no price and fall back at
// resolution time.
func (r *RateRepository) UpsertList(ctx context.Context, customerID *string, prices map[string]decimal.Decimal) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var listID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM rate_lists WHERE customer_id IS NOT DISTINCT FROM $1 FOR UPDATE`,
			customerID,
		).Scan(&listID)
		if errors.Is(err, pgx.ErrNoRows) {
			listID = uuid.New().String()
			if _, err := tx.Exec(ctx,
				`INSERT INTO rate_lists (id, customer_id) VALUES ($1, $2)`,
				listID, customerID,
			); err != nil {
				return errors.Wrap(err, "create rate list")
			}
		} else if err != nil {
			return errors.Wrap(err, "lock rate list")
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM rate_prices WHERE rate_list_id = $1`, listID,
		); err != nil {
			return errors.Wrap(err, "clear rate prices")
		}

		for _, bracket := range rate.Brackets {
			price, ok := prices[bracket.String()]
			if !ok {
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO rate_prices (rate_list_id, bracket_kg, price) VALUES ($1, $2, $3)`,
				listID, bracket, price,
			); err != nil {
				return errors.Wrapf(err, "insert price for bracket %s", bracket)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE rate_lists SET updated_at = now() WHERE id = $1`, listID,
		); err != nil {
			return errors.Wrap(err, "touch rate list")
		}
		return nil
	})
}
