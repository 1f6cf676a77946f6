package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/order"
)

// Webhook authentication headers. The signature is the hex HMAC-SHA256 of
// the timestamp header value under the shared webhook secret.
const (
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// SignWebhook computes the signature the tracking provider is expected to
// send for a given timestamp. Exported for tests and the provider simulator.
func SignWebhook(secret []byte, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// trackingWebhook ingests delivery status reports from the tracking
// provider. Missing auth headers are 400, a bad signature 403, an unknown
// tracking id 404. Delivery is at-least-once upstream, so replays of the
// same payload must land in the same final state.
func (h *Handler) trackingWebhook(w http.ResponseWriter, r *http.Request) {
	timestamp := r.Header.Get(HeaderWebhookTimestamp)
	signature := r.Header.Get(HeaderWebhookSignature)
	if timestamp == "" || signature == "" {
		writeError(w, http.StatusBadRequest, "missing webhook signature headers")
		return
	}

	expected := SignWebhook(h.webhookSecret, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		zctx.From(r.Context()).Warn("Webhook signature mismatch",
			zap.String("timestamp", timestamp),
			zap.String("remote", r.RemoteAddr),
		)
		writeError(w, http.StatusForbidden, "invalid webhook signature")
		return
	}

	var req struct {
		TrackingID     string `json:"tracking_id"`
		DeliveryStatus string `json:"delivery_status"`
		SubStatus      string `json:"sub_status"`
		LatestEvent    string `json:"latest_event"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TrackingID == "" {
		writeError(w, http.StatusBadRequest, "tracking_id is required")
		return
	}
	if !order.KnownDeliveryStatus(order.DeliveryStatus(req.DeliveryStatus)) {
		writeError(w, http.StatusBadRequest, "unknown delivery status "+req.DeliveryStatus)
		return
	}

	sh, err := h.orders.UpdateTracking(r.Context(), order.TrackingUpdate{
		TrackingID:     req.TrackingID,
		DeliveryStatus: order.DeliveryStatus(req.DeliveryStatus),
		SubStatus:      req.SubStatus,
		LatestEvent:    req.LatestEvent,
	})
	if err != nil {
		if errors.Is(err, order.ErrShipmentNotFound) {
			writeError(w, http.StatusNotFound, "unknown tracking id")
			return
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toShipmentJSON(sh))
}
