package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/order"
	"github.com/shipstack/courier-api/internal/domain/promo"
	"github.com/shipstack/courier-api/internal/domain/rate"
	"github.com/shipstack/courier-api/internal/domain/wallet"
)

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses: not-found 404,
// state conflicts 409, insufficient balance 402, rate configuration gaps 422,
// everything else that looks like bad input 400. Unrecognized errors are
// logged and become opaque 500s.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var unknownProvider *order.UnknownProviderError
	var invalidTransition *order.InvalidTransitionError

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrShipmentNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, wallet.ErrRequestNotFound),
		errors.Is(err, promo.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrNotPending),
		errors.Is(err, order.ErrNotBooked),
		errors.Is(err, wallet.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())

	case errors.Is(err, rate.ErrNoRateDefined),
		errors.Is(err, rate.ErrRateNotConfigured),
		errors.Is(err, promo.ErrInactive),
		errors.Is(err, promo.ErrAlreadyUsed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, rate.ErrInvalidWeight),
		errors.Is(err, order.ErrAWBRequired),
		errors.Is(err, order.ErrProviderUndetected),
		errors.Is(err, order.ErrCustomerRequired),
		errors.Is(err, order.ErrPickupRequired),
		errors.Is(err, wallet.ErrNonPositiveAmount),
		errors.As(err, &unknownProvider),
		errors.As(err, &invalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}
