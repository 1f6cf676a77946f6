package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/rate"
)

func (h *Handler) quoteRate(w http.ResponseWriter, r *http.Request) {
	weightStr := r.URL.Query().Get("weight")
	if weightStr == "" {
		writeError(w, http.StatusBadRequest, "weight is required")
		return
	}
	weight, err := decimal.NewFromString(weightStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weight must be a number")
		return
	}
	customerID := r.URL.Query().Get("customer_id")

	price, err := h.quotes.Resolve(r.Context(), customerID, weight)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	bracket, _ := rate.BracketFor(weight)
	writeJSON(w, http.StatusOK, map[string]any{
		"weight_kg":  weight,
		"bracket_kg": bracket,
		"price":      price,
	})
}

func (h *Handler) upsertDefaultRates(w http.ResponseWriter, r *http.Request) {
	h.upsertRates(w, r, nil)
}

func (h *Handler) upsertCustomerRates(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	h.upsertRates(w, r, &customerID)
}

// upsertRates replaces a rate list. The body maps bracket strings to prices;
// unknown brackets are rejected so typos do not silently drop a price.
func (h *Handler) upsertRates(w http.ResponseWriter, r *http.Request, customerID *string) {
	var req struct {
		Prices map[string]decimal.Decimal `json:"prices"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Prices) == 0 {
		writeError(w, http.StatusBadRequest, "prices is required")
		return
	}
	prices := make(map[string]decimal.Decimal, len(req.Prices))
	for bracket, price := range req.Prices {
		canonical, ok := canonicalBracket(bracket)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown weight bracket "+bracket)
			return
		}
		if price.IsNegative() {
			writeError(w, http.StatusBadRequest, "price for bracket "+bracket+" must not be negative")
			return
		}
		prices[canonical] = price
	}

	if err := h.rateAdmin.UpsertList(r.Context(), customerID, prices); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if h.quoteInv != nil {
		target := ""
		if customerID != nil {
			target = *customerID
		}
		if err := h.quoteInv.InvalidateCustomer(r.Context(), target); err != nil {
			zctx.From(r.Context()).Warn("Quote cache invalidation failed", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// canonicalBracket maps a client-supplied bracket string ("1.0", "1") onto
// the canonical bracket key used by storage.
func canonicalBracket(s string) (string, bool) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return "", false
	}
	for _, b := range rate.Brackets {
		if b.Equal(v) {
			return b.String(), true
		}
	}
	return "", false
}
