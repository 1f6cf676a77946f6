// Package payment abstracts the payment gateway used for wallet top-ups.
// The core never depends on a concrete gateway; failures here are
// best-effort and never abort wallet state.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Session is a hosted checkout session for a top-up amount. The customer is
// redirected to RedirectURL and the gateway reports back with ReferenceNo.
type Session struct {
	ID          string
	RedirectURL string
}

// Gateway creates checkout sessions with the payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, amount decimal.Decimal, referenceNo string) (*Session, error)
}

// Noop is a Gateway that creates no session. Used when no provider is
// configured; top-up requests then rely on the reference number alone.
type Noop struct{}

func (Noop) CreateSession(context.Context, decimal.Decimal, string) (*Session, error) {
	return nil, nil
}
