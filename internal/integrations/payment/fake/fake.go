// Package fake provides an in-memory payment gateway for tests and local
// development.
package fake

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/integrations/payment"
)

// Gateway records every created session and hands out deterministic
// redirect URLs.
type Gateway struct {
	mu       sync.Mutex
	Sessions []payment.Session

	// Err, when set, is returned from CreateSession.
	Err error
}

func (g *Gateway) CreateSession(_ context.Context, _ decimal.Decimal, referenceNo string) (*payment.Session, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s := payment.Session{
		ID:          "sess-" + referenceNo,
		RedirectURL: "https://pay.example.test/checkout/" + referenceNo,
	}
	g.Sessions = append(g.Sessions, s)
	return &s, nil
}
