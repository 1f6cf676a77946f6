// Package rate resolves shipping prices from per-customer and default rate
// lists over a fixed set of chargeable weight brackets.
package rate

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoRateDefined is returned when the chargeable weight exceeds the
	// highest bracket. There is no price to fall back to.
	ErrNoRateDefined = errors.New("no rate defined for weight")
	// ErrRateNotConfigured is returned when neither the customer's rate list
	// nor the default rate list has a price for the resolved bracket.
	// Lookups never silently resolve to zero.
	ErrRateNotConfigured = errors.New("rate not configured for bracket")
	// ErrInvalidWeight is returned for zero or negative weights.
	ErrInvalidWeight = errors.New("weight must be greater than 0")
)

// Brackets lists the chargeable weight brackets in kilograms, ascending.
// A declared weight is rounded up to the nearest bracket.
var Brackets = func() []decimal.Decimal {
	raw := []string{
		"0.5", "1", "2", "3", "5", "7", "10", "12", "15", "17",
		"20", "22", "25", "28", "30", "35", "40", "45", "50",
	}
	out := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		out[i] = decimal.RequireFromString(s)
	}
	return out
}()

// BracketFor rounds weight up to the nearest defined bracket.
func BracketFor(weight decimal.Decimal) (decimal.Decimal, error) {
	if !weight.IsPositive() {
		return decimal.Zero, ErrInvalidWeight
	}
	for _, b := range Brackets {
		if weight.LessThanOrEqual(b) {
			return b, nil
		}
	}
	return decimal.Zero, errors.Wrapf(ErrNoRateDefined, "%s kg exceeds %s kg", weight, Brackets[len(Brackets)-1])
}

// Repository provides bracket price lookups. A nil price with a nil error
// means the list exists but has no price for that bracket, or the list is
// absent entirely; the resolver treats both the same way.
type Repository interface {
	// PriceFor returns the customer-specific price for the bracket.
	PriceFor(ctx context.Context, customerID string, bracket decimal.Decimal) (*decimal.Decimal, error)
	// DefaultPriceFor returns the default rate list price for the bracket.
	DefaultPriceFor(ctx context.Context, bracket decimal.Decimal) (*decimal.Decimal, error)
}

// Resolver computes deterministic, side-effect-free price quotes.
type Resolver struct {
	rates Repository
}

// NewResolver creates a Resolver backed by the given rate repository.
func NewResolver(rates Repository) *Resolver {
	return &Resolver{rates: rates}
}

// Resolve returns the price for the given customer and chargeable weight.
// Resolution order: customer rate list, then the default rate list. A missing
// price in both is ErrRateNotConfigured, never zero.
func (r *Resolver) Resolve(ctx context.Context, customerID string, weight decimal.Decimal) (decimal.Decimal, error) {
	bracket, err := BracketFor(weight)
	if err != nil {
		return decimal.Zero, err
	}

	if customerID != "" {
		price, err := r.rates.PriceFor(ctx, customerID, bracket)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "customer rate lookup")
		}
		if price != nil {
			return *price, nil
		}
	}

	price, err := r.rates.DefaultPriceFor(ctx, bracket)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "default rate lookup")
	}
	if price == nil {
		return decimal.Zero, errors.Wrapf(ErrRateNotConfigured, "bracket %s kg", bracket)
	}
	return *price, nil
}
