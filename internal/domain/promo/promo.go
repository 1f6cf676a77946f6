// Package promo validates and applies promotional discount codes to order
// totals, tracking per-customer usage.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no promocode exists for the given code.
	ErrNotFound = errors.New("promocode not found")
	// ErrInactive is returned when the code exists but is switched off.
	// Applying an inactive code never changes its usage count.
	ErrInactive = errors.New("promocode inactive")
	// ErrAlreadyUsed is returned when a single-use code was already consumed
	// by the same customer.
	ErrAlreadyUsed = errors.New("promocode already used by customer")
)

// Promocode is a flat-amount discount code. Toggling Active does not affect
// past applications.
type Promocode struct {
	ID        string
	Code      string
	Discount  decimal.Decimal
	Active    bool
	SingleUse bool
	Uses      int
	CreatedAt time.Time
}

// Repository persists promocodes and their usage records. Usage rows are not
// written here: they commit inside the order-creation transaction, so a failed
// order insert never burns a code.
type Repository interface {
	// FindByCode performs a case-insensitive code lookup.
	// Returns ErrNotFound when the code does not exist.
	FindByCode(ctx context.Context, code string) (*Promocode, error)
	Create(ctx context.Context, p *Promocode) error
	SetActive(ctx context.Context, id string, active bool) error
	HasUsed(ctx context.Context, promocodeID, customerID string) (bool, error)
}

// Application is the outcome of applying a promocode to an order amount.
type Application struct {
	PromocodeID string
	Code        string
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Applier applies promocodes to order totals.
type Applier struct {
	repo Repository
}

// NewApplier creates an Applier backed by the given repository.
func NewApplier(repo Repository) *Applier {
	return &Applier{repo: repo}
}

// Apply validates the code and computes the discounted total, floored at
// zero. It has no side effects: the caller commits the usage record together
// with the order it belongs to, keyed by the returned PromocodeID.
func (a *Applier) Apply(ctx context.Context, code, customerID string, orderAmount decimal.Decimal) (*Application, error) {
	p, err := a.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promocode")
	}

	if !p.Active {
		return nil, ErrInactive
	}

	if p.SingleUse {
		used, err := a.repo.HasUsed(ctx, p.ID, customerID)
		if err != nil {
			return nil, errors.Wrap(err, "check promocode usage")
		}
		if used {
			return nil, ErrAlreadyUsed
		}
	}

	total := orderAmount.Sub(p.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Application{
		PromocodeID: p.ID,
		Code:        p.Code,
		Discount:    p.Discount,
		Total:       total.Round(2),
	}, nil
}

// Toggle flips the active flag. Past usages are not affected.
func (a *Applier) Toggle(ctx context.Context, id string, active bool) error {
	return a.repo.SetActive(ctx, id, active)
}
