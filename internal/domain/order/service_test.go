package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier-api/internal/domain/promo"
	"github.com/shipstack/courier-api/internal/domain/wallet"
)

// --- Mock implementations ---

// memOrderRepo mirrors the transactional guarantees of the postgres
// repository in memory: approval checks PENDING and the balance before any
// write, and either everything is applied or nothing is.
type memOrderRepo struct {
	orders    map[string]*Order
	shipments map[string]*Shipment // keyed by order id
	balance   decimal.Decimal
	debits    []decimal.Decimal
	promoUses map[string]int
	createErr error
}

func newMemOrderRepo(balance string) *memOrderRepo {
	return &memOrderRepo{
		orders:    make(map[string]*Order),
		shipments: make(map[string]*Shipment),
		balance:   decimal.RequireFromString(balance),
		promoUses: make(map[string]int),
	}
}

func (m *memOrderRepo) Create(_ context.Context, o *Order, promoUse *PromoUsage) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[o.ID] = o
	if promoUse != nil {
		m.promoUses[promoUse.PromocodeID]++
	}
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) ListByCustomer(_ context.Context, customerID string, _, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) GetShipmentByOrder(_ context.Context, orderID string) (*Shipment, error) {
	sh, ok := m.shipments[orderID]
	if !ok {
		return nil, ErrShipmentNotFound
	}
	return sh, nil
}

func (m *memOrderRepo) Approve(_ context.Context, p ApproveParams) (*Shipment, error) {
	o, ok := m.orders[p.OrderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, ErrNotPending
	}
	if m.balance.LessThan(o.Price) {
		return nil, wallet.ErrInsufficientBalance
	}
	m.balance = m.balance.Sub(o.Price)
	m.debits = append(m.debits, o.Price)
	sh := &Shipment{
		ID:              "sh-" + p.OrderID,
		OrderID:         p.OrderID,
		AWBNumber:       p.AWBNumber,
		CourierProvider: p.CourierProvider,
		DeliveryStatus:  DeliveryInfoReceived,
	}
	m.shipments[p.OrderID] = sh
	o.Status = StatusBooked
	return sh, nil
}

func (m *memOrderRepo) Reject(_ context.Context, orderID string) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != StatusPending {
		return ErrNotPending
	}
	o.Status = StatusRejected
	return nil
}

func (m *memOrderRepo) ApplyTrackingUpdate(_ context.Context, u TrackingUpdate) (*Shipment, error) {
	for _, sh := range m.shipments {
		if sh.AWBNumber == u.TrackingID {
			o := m.orders[sh.OrderID]
			if !o.Status.BookedOrLater() {
				return nil, ErrNotBooked
			}
			sh.DeliveryStatus = u.DeliveryStatus
			sh.SubStatus = u.SubStatus
			sh.LatestEvent = u.LatestEvent
			return sh, nil
		}
	}
	return nil, ErrShipmentNotFound
}

type mockResolver struct {
	price decimal.Decimal
	err   error
}

func (m *mockResolver) Resolve(_ context.Context, _ string, _ decimal.Decimal) (decimal.Decimal, error) {
	return m.price, m.err
}

type mockApplier struct {
	app *promo.Application
	err error
}

func (m *mockApplier) Apply(_ context.Context, _, _ string, _ decimal.Decimal) (*promo.Application, error) {
	return m.app, m.err
}

// stubPromoRepo backs a real promo.Applier in tests that exercise the
// usage-commits-with-the-order contract.
type stubPromoRepo struct {
	codes map[string]*promo.Promocode
	used  map[string]bool
}

func (s *stubPromoRepo) FindByCode(_ context.Context, code string) (*promo.Promocode, error) {
	p, ok := s.codes[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	return p, nil
}

func (s *stubPromoRepo) Create(_ context.Context, p *promo.Promocode) error {
	s.codes[p.Code] = p
	return nil
}

func (s *stubPromoRepo) SetActive(_ context.Context, _ string, _ bool) error { return nil }

func (s *stubPromoRepo) HasUsed(_ context.Context, promocodeID, customerID string) (bool, error) {
	return s.used[promocodeID+"/"+customerID], nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(repo *memOrderRepo, price string) *Service {
	return NewService(repo, &mockResolver{price: d(price)}, &mockApplier{})
}

func createPending(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:     "cust-1",
		PickupLocation: "warehouse-7",
		WeightKg:       d("1.5"),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, o.Status)
	return o
}

// --- Tests ---

func TestCreate_ResolvesPrice(t *testing.T) {
	repo := newMemOrderRepo("1000")
	svc := newService(repo, "80")

	o := createPending(t, svc)
	assert.True(t, d("80").Equal(o.Price))
	assert.True(t, decimal.Zero.Equal(o.Discount))
}

func TestCreate_AppliesPromo(t *testing.T) {
	repo := newMemOrderRepo("1000")
	svc := NewService(repo,
		&mockResolver{price: d("80")},
		&mockApplier{app: &promo.Application{Code: "SAVE20", Discount: d("20"), Total: d("60")}},
	)

	o, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:     "cust-1",
		PickupLocation: "warehouse-7",
		WeightKg:       d("1.5"),
		PromoCode:      "SAVE20",
	})
	require.NoError(t, err)
	assert.True(t, d("60").Equal(o.Price))
	assert.True(t, d("20").Equal(o.Discount))
}

func TestCreate_InactivePromoFailsCreation(t *testing.T) {
	repo := newMemOrderRepo("1000")
	svc := NewService(repo, &mockResolver{price: d("80")}, &mockApplier{err: promo.ErrInactive})

	_, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:     "cust-1",
		PickupLocation: "warehouse-7",
		WeightKg:       d("1.5"),
		PromoCode:      "OLD",
	})
	require.ErrorIs(t, err, promo.ErrInactive)
	assert.Empty(t, repo.orders)
}

func TestCreate_FailedInsertLeavesPromoUnused(t *testing.T) {
	promoRepo := &stubPromoRepo{
		codes: map[string]*promo.Promocode{
			"SAVE10": {ID: "pc1", Code: "SAVE10", Discount: d("10"), Active: true, SingleUse: true},
		},
		used: map[string]bool{},
	}
	repo := newMemOrderRepo("1000")
	repo.createErr = errors.New("insert failed")
	svc := NewService(repo, &mockResolver{price: d("80")}, promo.NewApplier(promoRepo))
	ctx := context.Background()

	req := CreateRequest{
		CustomerID:     "cust-1",
		PickupLocation: "warehouse-7",
		WeightKg:       d("1.5"),
		PromoCode:      "SAVE10",
	}
	_, err := svc.Create(ctx, req)
	require.Error(t, err)

	// The failed insert must not consume the single-use code.
	assert.Zero(t, repo.promoUses["pc1"])
	used, err := promoRepo.HasUsed(ctx, "pc1", "cust-1")
	require.NoError(t, err)
	assert.False(t, used)

	// A retry after the transient failure succeeds and records the usage
	// exactly once, with the order.
	repo.createErr = nil
	o, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.True(t, d("70").Equal(o.Price))
	assert.Equal(t, 1, repo.promoUses["pc1"])
}

func TestCreate_MissingFields(t *testing.T) {
	svc := newService(newMemOrderRepo("0"), "80")

	_, err := svc.Create(context.Background(), CreateRequest{PickupLocation: "x", WeightKg: d("1")})
	require.ErrorIs(t, err, ErrCustomerRequired)

	_, err = svc.Create(context.Background(), CreateRequest{CustomerID: "c", WeightKg: d("1")})
	require.ErrorIs(t, err, ErrPickupRequired)
}

func TestApprove_BooksDebitsAndCreatesShipment(t *testing.T) {
	repo := newMemOrderRepo("500")
	svc := newService(repo, "80")
	o := createPending(t, svc)

	// Provider auto-detected from the SF-prefixed AWB.
	sh, err := svc.Approve(context.Background(), o.ID, "SF1234567890", "")
	require.NoError(t, err)
	assert.Equal(t, "shadowfax", sh.CourierProvider)
	assert.Equal(t, StatusBooked, repo.orders[o.ID].Status)
	assert.True(t, d("420").Equal(repo.balance))
	require.Len(t, repo.debits, 1)
	assert.True(t, d("80").Equal(repo.debits[0]))
}

func TestApprove_SecondAttemptFails(t *testing.T) {
	repo := newMemOrderRepo("500")
	svc := newService(repo, "80")
	o := createPending(t, svc)
	ctx := context.Background()

	_, err := svc.Approve(ctx, o.ID, "1234567890", "")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, o.ID, "1234567890", "")
	require.ErrorIs(t, err, ErrNotPending)

	// No duplicate shipment, no second debit.
	assert.Len(t, repo.shipments, 1)
	assert.Len(t, repo.debits, 1)
}

func TestApprove_InsufficientBalance(t *testing.T) {
	repo := newMemOrderRepo("10")
	svc := newService(repo, "80")
	o := createPending(t, svc)

	_, err := svc.Approve(context.Background(), o.ID, "1234567890", "")
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)

	// Order stays PENDING, nothing written.
	assert.Equal(t, StatusPending, repo.orders[o.ID].Status)
	assert.Empty(t, repo.shipments)
}

func TestApprove_ValidationOrder(t *testing.T) {
	repo := newMemOrderRepo("500")
	svc := newService(repo, "80")
	o := createPending(t, svc)
	ctx := context.Background()

	_, err := svc.Approve(ctx, o.ID, "", "")
	require.ErrorIs(t, err, ErrAWBRequired)

	_, err = svc.Approve(ctx, o.ID, "not-a-real-awb", "")
	require.ErrorIs(t, err, ErrProviderUndetected)

	var upErr *UnknownProviderError
	_, err = svc.Approve(ctx, o.ID, "1234567890", "pigeon")
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "pigeon", upErr.Code)

	// Explicit known provider wins over format detection.
	sh, err := svc.Approve(ctx, o.ID, "XP-000111", "delhivery")
	require.NoError(t, err)
	assert.Equal(t, "delhivery", sh.CourierProvider)
}

func TestReject(t *testing.T) {
	repo := newMemOrderRepo("500")
	svc := newService(repo, "80")
	o := createPending(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Reject(ctx, o.ID))
	assert.Equal(t, StatusRejected, repo.orders[o.ID].Status)

	// Rejecting again is an explicit conflict, and no wallet movement ever.
	require.ErrorIs(t, svc.Reject(ctx, o.ID), ErrNotPending)
	assert.Empty(t, repo.debits)

	_, err := svc.Approve(ctx, o.ID, "1234567890", "")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestUpdateTracking_IdempotentReplay(t *testing.T) {
	repo := newMemOrderRepo("500")
	svc := newService(repo, "80")
	o := createPending(t, svc)
	ctx := context.Background()

	_, err := svc.Approve(ctx, o.ID, "SF1234567890", "")
	require.NoError(t, err)

	upd := TrackingUpdate{
		TrackingID:     "SF1234567890",
		DeliveryStatus: DeliveryTransit,
		SubStatus:      "in_transit_to_hub",
		LatestEvent:    "Departed sorting facility",
	}

	first, err := svc.UpdateTracking(ctx, upd)
	require.NoError(t, err)

	second, err := svc.UpdateTracking(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, first.DeliveryStatus, second.DeliveryStatus)
	assert.Equal(t, first.SubStatus, second.SubStatus)
	assert.Equal(t, first.LatestEvent, second.LatestEvent)

	// Order status untouched by webhooks.
	assert.Equal(t, StatusBooked, repo.orders[o.ID].Status)
}

func TestUpdateTracking_UnknownTrackingID(t *testing.T) {
	svc := newService(newMemOrderRepo("500"), "80")

	_, err := svc.UpdateTracking(context.Background(), TrackingUpdate{
		TrackingID:     "SF0000000000",
		DeliveryStatus: DeliveryTransit,
	})
	require.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestUpdateTracking_RejectsUnknownStatus(t *testing.T) {
	svc := newService(newMemOrderRepo("500"), "80")

	_, err := svc.UpdateTracking(context.Background(), TrackingUpdate{
		TrackingID:     "SF1234567890",
		DeliveryStatus: "TELEPORTED",
	})
	require.Error(t, err)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusBooked))
	assert.True(t, StatusPending.CanTransitionTo(StatusRejected))
	assert.True(t, StatusTransit.CanTransitionTo(StatusDelivered))
	assert.False(t, StatusRejected.CanTransitionTo(StatusPending))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusTransit))
	assert.False(t, StatusBooked.CanTransitionTo(StatusPending))

	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusException.Terminal())
	assert.True(t, StatusUndelivered.Terminal())
	assert.False(t, StatusPending.Terminal())

	assert.True(t, StatusBooked.BookedOrLater())
	assert.True(t, StatusDelivered.BookedOrLater())
	assert.False(t, StatusPending.BookedOrLater())
	assert.False(t, StatusRejected.BookedOrLater())
}
