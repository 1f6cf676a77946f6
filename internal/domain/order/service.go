package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/courier"
	"github.com/shipstack/courier-api/internal/domain/promo"
)

// Sentinel errors for order creation input validation.
var (
	ErrCustomerRequired = errors.New("customer id required")
	ErrPickupRequired   = errors.New("pickup location required")
)

// PromoApplier validates a promocode against an order amount and computes the
// discounted total. It must not record usage; that commits with the order.
type PromoApplier interface {
	Apply(ctx context.Context, code, customerID string, orderAmount decimal.Decimal) (*promo.Application, error)
}

// RateResolver computes the price for a customer and chargeable weight.
type RateResolver interface {
	Resolve(ctx context.Context, customerID string, weight decimal.Decimal) (decimal.Decimal, error)
}

// Service encapsulates the order lifecycle business logic.
type Service struct {
	orders Repository
	rates  RateResolver
	promos PromoApplier
}

// NewService creates an order Service with the required domain dependencies.
func NewService(orders Repository, rates RateResolver, promos PromoApplier) *Service {
	return &Service{
		orders: orders,
		rates:  rates,
		promos: promos,
	}
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	CustomerID     string
	PickupLocation string
	WeightKg       decimal.Decimal
	LengthCm       decimal.Decimal
	WidthCm        decimal.Decimal
	HeightCm       decimal.Decimal
	Insured        bool
	PromoCode      string
}

// Create resolves the price for the declared weight, applies an optional
// promocode (discount floored at zero), and persists the order in PENDING.
// The promocode usage record commits together with the order insert, so a
// failed insert leaves the code unconsumed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if req.PickupLocation == "" {
		return nil, ErrPickupRequired
	}

	price, err := s.rates.Resolve(ctx, req.CustomerID, req.WeightKg)
	if err != nil {
		return nil, errors.Wrap(err, "resolve rate")
	}

	total := price
	discount := decimal.Zero
	var promoUse *PromoUsage
	if req.PromoCode != "" {
		app, err := s.promos.Apply(ctx, req.PromoCode, req.CustomerID, price)
		if err != nil {
			return nil, errors.Wrap(err, "apply promocode")
		}
		total = app.Total
		discount = app.Discount
		promoUse = &PromoUsage{PromocodeID: app.PromocodeID}
	}

	o := &Order{
		ID:             uuid.New().String(),
		CustomerID:     req.CustomerID,
		PickupLocation: req.PickupLocation,
		WeightKg:       req.WeightKg,
		LengthCm:       req.LengthCm,
		WidthCm:        req.WidthCm,
		HeightCm:       req.HeightCm,
		Insured:        req.Insured,
		Status:         StatusPending,
		Price:          total.Round(2),
		Discount:       discount.Round(2),
		PromoCode:      req.PromoCode,
	}
	if err := s.orders.Create(ctx, o, promoUse); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Approve books a PENDING order under the given AWB. When no provider is
// supplied it is auto-detected from the AWB format; when supplied it must be
// a known code (format validation is skipped, the admin's choice wins).
// Shipment creation, wallet debit, and the status change commit atomically.
func (s *Service) Approve(ctx context.Context, orderID, awbNumber, provider string) (*Shipment, error) {
	if awbNumber == "" {
		return nil, ErrAWBRequired
	}

	if provider == "" {
		provider = courier.Detect(awbNumber)
		if provider == "" {
			return nil, ErrProviderUndetected
		}
	} else if !courier.Known(provider) {
		return nil, &UnknownProviderError{Code: provider}
	}

	sh, err := s.orders.Approve(ctx, ApproveParams{
		OrderID:         orderID,
		AWBNumber:       awbNumber,
		CourierProvider: provider,
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// Reject moves a PENDING order to REJECTED. Rejecting an order that already
// left PENDING is an explicit ErrNotPending, never a double effect.
func (s *Service) Reject(ctx context.Context, orderID string) error {
	return s.orders.Reject(ctx, orderID)
}

// Get returns the order with its shipment, when one exists.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, *Shipment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	sh, err := s.orders.GetShipmentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			return o, nil, nil
		}
		return nil, nil, errors.Wrap(err, "get shipment")
	}
	return o, sh, nil
}

// List returns the customer's orders, newest first.
func (s *Service) List(ctx context.Context, customerID string, limit, offset int) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID, limit, offset)
}

// UpdateTracking applies a delivery status report from the tracking provider
// to the matching shipment. The order status is not transitioned; delivery
// progress lives on the shipment. Replays of the same payload are no-ops.
func (s *Service) UpdateTracking(ctx context.Context, u TrackingUpdate) (*Shipment, error) {
	if u.TrackingID == "" {
		return nil, ErrShipmentNotFound
	}
	if !KnownDeliveryStatus(u.DeliveryStatus) {
		return nil, errors.Errorf("unknown delivery status %q", u.DeliveryStatus)
	}
	return s.orders.ApplyTrackingUpdate(ctx, u)
}
