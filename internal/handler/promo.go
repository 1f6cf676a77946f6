package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/promo"
)

type promocodeJSON struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	Active    bool            `json:"active"`
	SingleUse bool            `json:"single_use"`
	Uses      int             `json:"uses"`
}

func toPromocodeJSON(p *promo.Promocode) promocodeJSON {
	return promocodeJSON{
		ID:        p.ID,
		Code:      p.Code,
		Discount:  p.Discount,
		Active:    p.Active,
		SingleUse: p.SingleUse,
		Uses:      p.Uses,
	}
}

func (h *Handler) getPromocode(w http.ResponseWriter, r *http.Request) {
	p, err := h.promoRepo.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromocodeJSON(p))
}

func (h *Handler) createPromocode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string          `json:"code"`
		Discount  decimal.Decimal `json:"discount"`
		SingleUse bool            `json:"single_use"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Discount.IsNegative() {
		writeError(w, http.StatusBadRequest, "discount must not be negative")
		return
	}

	p := &promo.Promocode{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Discount:  req.Discount,
		Active:    true,
		SingleUse: req.SingleUse,
	}
	if err := h.promoRepo.Create(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromocodeJSON(p))
}

func (h *Handler) togglePromocode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.promos.Toggle(r.Context(), id, req.Active); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"active": req.Active,
	})
}
