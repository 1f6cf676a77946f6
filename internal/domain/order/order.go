// Package order implements the order lifecycle: creation with rate
// resolution, admin approval with AWB assignment and wallet debit, rejection,
// and shipment tracking updates.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. Transitions are one-directional;
// REJECTED, DELIVERED, UNDELIVERED, and EXCEPTION are terminal.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusApproved     Status = "APPROVED"
	StatusBooked       Status = "BOOKED"
	StatusRejected     Status = "REJECTED"
	StatusInfoReceived Status = "INFORECEIVED"
	StatusPickup       Status = "PICKUP"
	StatusTransit      Status = "TRANSIT"
	StatusDelivered    Status = "DELIVERED"
	StatusUndelivered  Status = "UNDELIVERED"
	StatusException    Status = "EXCEPTION"
)

// transitions is the allowed forward edge set of the order state machine.
var transitions = map[Status][]Status{
	StatusPending:      {StatusApproved, StatusBooked, StatusRejected},
	StatusApproved:     {StatusBooked},
	StatusBooked:       {StatusInfoReceived, StatusPickup, StatusTransit, StatusDelivered, StatusUndelivered, StatusException},
	StatusInfoReceived: {StatusPickup, StatusTransit, StatusDelivered, StatusUndelivered, StatusException},
	StatusPickup:       {StatusTransit, StatusDelivered, StatusUndelivered, StatusException},
	StatusTransit:      {StatusDelivered, StatusUndelivered, StatusException},
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// BookedOrLater reports whether the order has passed approval, i.e. a
// shipment exists and tracking updates are acceptable.
func (s Status) BookedOrLater() bool {
	switch s {
	case StatusBooked, StatusInfoReceived, StatusPickup, StatusTransit,
		StatusDelivered, StatusUndelivered, StatusException:
		return true
	}
	return false
}

// DeliveryStatus is the shipment-side delivery progress reported by the
// tracking provider. It is tracked independently of the order status and is
// the source of truth for delivery progress in admin views.
type DeliveryStatus string

const (
	DeliveryInfoReceived DeliveryStatus = "INFORECEIVED"
	DeliveryPickup       DeliveryStatus = "PICKUP"
	DeliveryTransit      DeliveryStatus = "TRANSIT"
	DeliveryDelivered    DeliveryStatus = "DELIVERED"
	DeliveryUndelivered  DeliveryStatus = "UNDELIVERED"
	DeliveryException    DeliveryStatus = "EXCEPTION"
)

// KnownDeliveryStatus reports whether s is a recognized delivery status.
func KnownDeliveryStatus(s DeliveryStatus) bool {
	switch s {
	case DeliveryInfoReceived, DeliveryPickup, DeliveryTransit,
		DeliveryDelivered, DeliveryUndelivered, DeliveryException:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrShipmentNotFound is returned when no shipment matches a tracking id.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrNotPending is returned when approving or rejecting an order that
	// already left PENDING. At most one approval ever succeeds.
	ErrNotPending = errors.New("order is not pending")
	// ErrNotBooked is returned for tracking updates on orders that were never
	// booked.
	ErrNotBooked = errors.New("order is not booked")
	// ErrAWBRequired is returned when approval is attempted without an AWB.
	ErrAWBRequired = errors.New("awb number required")
	// ErrProviderUndetected is returned when no provider was supplied and the
	// AWB matches no known pattern. The caller must select one manually.
	ErrProviderUndetected = errors.New("courier provider could not be detected, manual selection required")
)

// UnknownProviderError indicates an explicitly supplied provider code that is
// not in the supported set.
type UnknownProviderError struct {
	Code string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown courier provider %q", e.Code)
}

// InvalidTransitionError indicates an illegal order status change.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// Order is a customer shipment request. Pricing is resolved at creation and
// immutable once the order leaves PENDING. Orders are never hard-deleted.
type Order struct {
	ID             string
	CustomerID     string
	PickupLocation string
	WeightKg       decimal.Decimal
	LengthCm       decimal.Decimal
	WidthCm        decimal.Decimal
	HeightCm       decimal.Decimal
	Insured        bool
	Status         Status
	Price          decimal.Decimal
	Discount       decimal.Decimal
	PromoCode      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Shipment is the courier-side record, created at approval and owned 1:1 by
// its order. Tracking webhooks mutate its delivery fields only.
type Shipment struct {
	ID                 string
	OrderID            string
	AWBNumber          string
	CourierProvider    string
	DeliveryStatus     DeliveryStatus
	SubStatus          string
	LatestEvent        string
	ExternalTrackingID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PromoUsage ties an applied promocode to the order being created. When set,
// the usage counter bump and the usage row commit in the same transaction as
// the order insert, so a failed insert never consumes the code.
type PromoUsage struct {
	PromocodeID string
}

// ApproveParams is the input to the atomic approval mutation.
type ApproveParams struct {
	OrderID         string
	AWBNumber       string
	CourierProvider string
}

// TrackingUpdate is a delivery status report from the tracking provider.
type TrackingUpdate struct {
	TrackingID     string
	DeliveryStatus DeliveryStatus
	SubStatus      string
	LatestEvent    string
}

// Repository persists orders and shipments. The multi-record mutations
// (Approve, Reject, ApplyTrackingUpdate) execute as single storage
// transactions with row locks, so concurrent calls serialize and at most one
// approval succeeds.
type Repository interface {
	// Create persists a new order. A non-nil promoUse records the promocode
	// redemption atomically with the insert.
	Create(ctx context.Context, o *Order, promoUse *PromoUsage) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, error)
	GetShipmentByOrder(ctx context.Context, orderID string) (*Shipment, error)
	// Approve books a PENDING order: creates the shipment, debits the
	// customer's wallet by the order's resolved price, and sets status
	// BOOKED, all in one transaction. Returns ErrNotPending when the order
	// already left PENDING and wallet.ErrInsufficientBalance when the wallet
	// cannot cover the price; either way nothing is written.
	Approve(ctx context.Context, p ApproveParams) (*Shipment, error)
	// Reject moves a PENDING order to REJECTED. No wallet effect.
	Reject(ctx context.Context, orderID string) error
	// ApplyTrackingUpdate sets the shipment's delivery fields. Idempotent:
	// replaying the same update leaves the same final state.
	ApplyTrackingUpdate(ctx context.Context, u TrackingUpdate) (*Shipment, error)
}
