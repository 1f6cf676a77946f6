package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/wallet"
	"github.com/shipstack/courier-api/internal/integrations/email"
)

type transactionJSON struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Reason    string          `json:"reason"`
	OrderID   *string         `json:"order_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	wl, err := h.ledger.Balance(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	limit, offset := pagination(r)
	txs, err := h.ledger.Transactions(r.Context(), wl.ID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionJSON{
			ID:        t.ID,
			Amount:    t.Amount,
			Type:      string(t.Type),
			Reason:    t.Reason,
			OrderID:   t.OrderID,
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_id":    wl.ID,
		"customer_id":  wl.CustomerID,
		"balance":      wl.Balance,
		"transactions": out,
	})
}

func (h *Handler) createWalletRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID  string          `json:"customer_id"`
		Amount      decimal.Decimal `json:"amount"`
		ReferenceNo string          `json:"reference_no"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if req.ReferenceNo == "" {
		writeError(w, http.StatusBadRequest, "reference_no is required")
		return
	}

	wr, err := h.ledger.SubmitRequest(r.Context(), req.CustomerID, req.Amount, req.ReferenceNo)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{
		"request_id":   wr.ID,
		"wallet_id":    wr.WalletID,
		"amount":       wr.Amount,
		"reference_no": wr.ReferenceNo,
		"approved":     wr.Approved,
	}

	// The request is already persisted; a gateway outage only means the
	// customer pays through another channel against the same reference.
	session, err := h.payments.CreateSession(r.Context(), wr.Amount, wr.ReferenceNo)
	if err != nil {
		zctx.From(r.Context()).Warn("Payment session creation failed",
			zap.String("request_id", wr.ID),
			zap.Error(err),
		)
	} else if session != nil {
		resp["payment_url"] = session.RedirectURL
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) approveWalletRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	wr, err := h.ledger.ApproveRequest(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.notifyTopUp(r, wr)

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":   wr.ID,
		"wallet_id":    wr.WalletID,
		"amount":       wr.Amount,
		"reference_no": wr.ReferenceNo,
		"approved":     wr.Approved,
	})
}

// notifyTopUp sends the top-up confirmation mail. Best-effort: the credit is
// already committed.
func (h *Handler) notifyTopUp(r *http.Request, wr *wallet.Request) {
	err := h.mail.Send(r.Context(), email.Message{
		To:      wr.WalletID,
		Subject: "Wallet top-up approved",
		Body:    "Your top-up " + wr.ReferenceNo + " of " + wr.Amount.StringFixed(2) + " has been credited.",
	})
	if err != nil {
		zctx.From(r.Context()).Warn("Top-up notification failed",
			zap.String("request_id", wr.ID),
			zap.Error(err),
		)
	}
}
