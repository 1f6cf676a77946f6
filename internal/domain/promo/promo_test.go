package promo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPromoRepo struct {
	byCode map[string]*Promocode
	used   map[string]bool // promoID+customerID
}

func newMockPromoRepo(codes ...*Promocode) *mockPromoRepo {
	m := &mockPromoRepo{
		byCode: make(map[string]*Promocode),
		used:   make(map[string]bool),
	}
	for _, c := range codes {
		m.byCode[c.Code] = c
	}
	return m
}

func (m *mockPromoRepo) FindByCode(_ context.Context, code string) (*Promocode, error) {
	p, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPromoRepo) Create(_ context.Context, p *Promocode) error {
	m.byCode[p.Code] = p
	return nil
}

func (m *mockPromoRepo) SetActive(_ context.Context, id string, active bool) error {
	for _, p := range m.byCode {
		if p.ID == id {
			p.Active = active
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockPromoRepo) HasUsed(_ context.Context, promocodeID, customerID string) (bool, error) {
	return m.used[promocodeID+"/"+customerID], nil
}

func TestApply_Discounts(t *testing.T) {
	repo := newMockPromoRepo(&Promocode{
		ID: "pc1", Code: "WELCOME50", Discount: decimal.RequireFromString("50"), Active: true,
	})
	a := NewApplier(repo)

	app, err := a.Apply(context.Background(), "WELCOME50", "cust-1", decimal.RequireFromString("180"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("130").Equal(app.Total))
	assert.True(t, decimal.RequireFromString("50").Equal(app.Discount))
	assert.Equal(t, "pc1", app.PromocodeID)

	// Apply only validates and computes; the usage count is untouched until
	// the order it belongs to commits.
	assert.Equal(t, 0, repo.byCode["WELCOME50"].Uses)
}

func TestApply_FlooredAtZero(t *testing.T) {
	repo := newMockPromoRepo(&Promocode{
		ID: "pc1", Code: "MEGA", Discount: decimal.RequireFromString("500"), Active: true,
	})
	a := NewApplier(repo)

	app, err := a.Apply(context.Background(), "MEGA", "cust-1", decimal.RequireFromString("120"))
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(app.Total))
}

func TestApply_NotFound(t *testing.T) {
	a := NewApplier(newMockPromoRepo())

	_, err := a.Apply(context.Background(), "NOPE", "cust-1", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApply_InactiveRejected(t *testing.T) {
	code := &Promocode{ID: "pc1", Code: "OLD", Discount: decimal.RequireFromString("10"), Active: false}
	repo := newMockPromoRepo(code)
	a := NewApplier(repo)

	_, err := a.Apply(context.Background(), "OLD", "cust-1", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, ErrInactive)
}

func TestApply_SingleUseEnforced(t *testing.T) {
	code := &Promocode{ID: "pc1", Code: "ONCE", Discount: decimal.RequireFromString("25"), Active: true, SingleUse: true}
	repo := newMockPromoRepo(code)
	a := NewApplier(repo)
	ctx := context.Background()

	_, err := a.Apply(ctx, "ONCE", "cust-1", decimal.RequireFromString("100"))
	require.NoError(t, err)

	// Once the customer's usage is on record, the same customer is rejected.
	repo.used["pc1/cust-1"] = true
	_, err = a.Apply(ctx, "ONCE", "cust-1", decimal.RequireFromString("100"))
	require.ErrorIs(t, err, ErrAlreadyUsed)

	// A different customer may still use it.
	_, err = a.Apply(ctx, "ONCE", "cust-2", decimal.RequireFromString("100"))
	require.NoError(t, err)
}

func TestToggle_DoesNotTouchUsages(t *testing.T) {
	code := &Promocode{ID: "pc1", Code: "FLIP", Discount: decimal.RequireFromString("5"), Active: true, Uses: 7}
	repo := newMockPromoRepo(code)
	a := NewApplier(repo)

	require.NoError(t, a.Toggle(context.Background(), "pc1", false))
	assert.False(t, code.Active)
	assert.Equal(t, 7, code.Uses)
}
