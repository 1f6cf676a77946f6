// Package handler exposes the courier dispatch core as an HTTP JSON API:
// customer order and wallet endpoints, the admin surface, rate quotes, and
// the tracking webhook.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/order"
	"github.com/shipstack/courier-api/internal/domain/promo"
	"github.com/shipstack/courier-api/internal/domain/wallet"
	"github.com/shipstack/courier-api/internal/integrations/docstore"
	"github.com/shipstack/courier-api/internal/integrations/email"
	"github.com/shipstack/courier-api/internal/integrations/payment"
)

// RateQuoter computes a price for a customer and chargeable weight.
// Satisfied by both the plain and the cache-backed resolver.
type RateQuoter interface {
	Resolve(ctx context.Context, customerID string, weight decimal.Decimal) (decimal.Decimal, error)
}

// RateAdmin manages rate lists. A nil customerID targets the global default.
type RateAdmin interface {
	UpsertList(ctx context.Context, customerID *string, prices map[string]decimal.Decimal) error
}

// QuoteInvalidator drops cached quotes after a rate change. Optional; nil
// when quoting is uncached.
type QuoteInvalidator interface {
	InvalidateCustomer(ctx context.Context, customerID string) error
}

// Handler holds every dependency of the HTTP surface.
type Handler struct {
	orders    *order.Service
	ledger    *wallet.Ledger
	promos    *promo.Applier
	promoRepo promo.Repository
	quotes    RateQuoter
	rateAdmin RateAdmin
	quoteInv  QuoteInvalidator

	payments payment.Gateway
	mail     email.Sender
	docs     docstore.Store

	auth          *KeyAuth
	webhookSecret []byte
}

// Config holds the non-dependency knobs of the Handler.
type Config struct {
	// WebhookSecret signs tracking webhook timestamps.
	WebhookSecret []byte
}

// Deps lists the collaborators the Handler delegates to.
type Deps struct {
	Orders    *order.Service
	Ledger    *wallet.Ledger
	Promos    *promo.Applier
	PromoRepo promo.Repository
	Quotes    RateQuoter
	RateAdmin RateAdmin
	QuoteInv  QuoteInvalidator
	Payments  payment.Gateway
	Mail      email.Sender
	Docs      docstore.Store
	Auth      *KeyAuth
}

// NewHandler constructs a Handler. Nil integrations degrade to noops.
func NewHandler(cfg Config, deps Deps) *Handler {
	if deps.Payments == nil {
		deps.Payments = payment.Noop{}
	}
	if deps.Mail == nil {
		deps.Mail = email.Noop{}
	}
	if deps.Docs == nil {
		deps.Docs = docstore.Noop{}
	}
	return &Handler{
		orders:        deps.Orders,
		ledger:        deps.Ledger,
		promos:        deps.Promos,
		promoRepo:     deps.PromoRepo,
		quotes:        deps.Quotes,
		rateAdmin:     deps.RateAdmin,
		quoteInv:      deps.QuoteInv,
		payments:      deps.Payments,
		mail:          deps.Mail,
		docs:          deps.Docs,
		auth:          deps.Auth,
		webhookSecret: cfg.WebhookSecret,
	}
}

// Router mounts all routes. The webhook is authenticated by its signature,
// everything else by API key; /admin additionally requires the admin scope.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhooks/tracking", h.trackingWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require(""))

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)

		r.Get("/wallet", h.getWallet)
		r.Post("/wallet/requests", h.createWalletRequest)

		r.Get("/rates/quote", h.quoteRate)
		r.Get("/promocodes/{code}", h.getPromocode)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.auth.Require(ScopeAdmin))

		r.Post("/orders/{id}/approve", h.approveOrder)
		r.Post("/orders/{id}/reject", h.rejectOrder)

		r.Post("/wallet/requests/{id}/approve", h.approveWalletRequest)

		r.Put("/rates/default", h.upsertDefaultRates)
		r.Put("/rates/{customerID}", h.upsertCustomerRates)

		r.Post("/promocodes", h.createPromocode)
		r.Patch("/promocodes/{id}", h.togglePromocode)
	})

	return r
}
