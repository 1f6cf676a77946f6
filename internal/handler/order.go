package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/order"
)

type orderJSON struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	PickupLocation string          `json:"pickup_location"`
	WeightKg       decimal.Decimal `json:"weight_kg"`
	LengthCm       decimal.Decimal `json:"length_cm"`
	WidthCm        decimal.Decimal `json:"width_cm"`
	HeightCm       decimal.Decimal `json:"height_cm"`
	Insured        bool            `json:"insured"`
	Status         string          `json:"status"`
	Price          decimal.Decimal `json:"price"`
	Discount       decimal.Decimal `json:"discount"`
	PromoCode      string          `json:"promo_code,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Shipment *shipmentJSON `json:"shipment,omitempty"`
}

type shipmentJSON struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	AWBNumber       string    `json:"awb_number"`
	CourierProvider string    `json:"courier_provider"`
	DeliveryStatus  string    `json:"delivery_status"`
	SubStatus       string    `json:"sub_status,omitempty"`
	LatestEvent     string    `json:"latest_event,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toOrderJSON(o *order.Order, sh *order.Shipment) orderJSON {
	out := orderJSON{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		PickupLocation: o.PickupLocation,
		WeightKg:       o.WeightKg,
		LengthCm:       o.LengthCm,
		WidthCm:        o.WidthCm,
		HeightCm:       o.HeightCm,
		Insured:        o.Insured,
		Status:         string(o.Status),
		Price:          o.Price,
		Discount:       o.Discount,
		PromoCode:      o.PromoCode,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if sh != nil {
		s := toShipmentJSON(sh)
		out.Shipment = &s
	}
	return out
}

func toShipmentJSON(sh *order.Shipment) shipmentJSON {
	return shipmentJSON{
		ID:              sh.ID,
		OrderID:         sh.OrderID,
		AWBNumber:       sh.AWBNumber,
		CourierProvider: sh.CourierProvider,
		DeliveryStatus:  string(sh.DeliveryStatus),
		SubStatus:       sh.SubStatus,
		LatestEvent:     sh.LatestEvent,
		UpdatedAt:       sh.UpdatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID     string          `json:"customer_id"`
		PickupLocation string          `json:"pickup_location"`
		WeightKg       decimal.Decimal `json:"weight_kg"`
		LengthCm       decimal.Decimal `json:"length_cm"`
		WidthCm        decimal.Decimal `json:"width_cm"`
		HeightCm       decimal.Decimal `json:"height_cm"`
		Insured        bool            `json:"insured"`
		PromoCode      string          `json:"promo_code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		CustomerID:     req.CustomerID,
		PickupLocation: req.PickupLocation,
		WeightKg:       req.WeightKg,
		LengthCm:       req.LengthCm,
		WidthCm:        req.WidthCm,
		HeightCm:       req.HeightCm,
		Insured:        req.Insured,
		PromoCode:      req.PromoCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderJSON(o, nil))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, sh, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o, sh))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	limit, offset := pagination(r)

	orders, err := h.orders.List(r.Context(), customerID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderJSON, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderJSON(&orders[i], nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req struct {
		AWBNumber       string `json:"awb_number"`
		CourierProvider string `json:"courier_provider"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sh, err := h.orders.Approve(r.Context(), orderID, req.AWBNumber, req.CourierProvider)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := map[string]any{
		"order_id": orderID,
		"status":   string(order.StatusBooked),
		"shipment": toShipmentJSON(sh),
	}
	if url := h.storeBookingReceipt(r, orderID, sh); url != "" {
		out["receipt_url"] = url
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.orders.Reject(r.Context(), orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"status":   string(order.StatusRejected),
	})
}

// storeBookingReceipt archives the booking outcome in the document store and
// returns a time-limited download link for it. Best-effort: the booking is
// already committed, so failures are only logged and the link is omitted.
func (h *Handler) storeBookingReceipt(r *http.Request, orderID string, sh *order.Shipment) string {
	body, err := json.Marshal(toShipmentJSON(sh))
	if err != nil {
		return ""
	}
	key := "receipts/" + orderID + ".json"
	if err := h.docs.Put(r.Context(), key, "application/json", body); err != nil {
		zctx.From(r.Context()).Warn("Booking receipt upload failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return ""
	}
	url, err := h.docs.Presign(r.Context(), key, receiptLinkTTL)
	if err != nil {
		zctx.From(r.Context()).Warn("Booking receipt presign failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return ""
	}
	return url
}

// receiptLinkTTL bounds how long a booking receipt link stays valid.
const receiptLinkTTL = 24 * time.Hour

// pagination parses limit/offset with a default page size of 20, capped at 100.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
