package rate

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRateRepo struct {
	custom     map[string]decimal.Decimal // bracket string -> price
	defaults   map[string]decimal.Decimal
	customErr  error
	defaultErr error
}

func (m *mockRateRepo) PriceFor(_ context.Context, _ string, bracket decimal.Decimal) (*decimal.Decimal, error) {
	if m.customErr != nil {
		return nil, m.customErr
	}
	if p, ok := m.custom[bracket.String()]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *mockRateRepo) DefaultPriceFor(_ context.Context, bracket decimal.Decimal) (*decimal.Decimal, error) {
	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if p, ok := m.defaults[bracket.String()]; ok {
		return &p, nil
	}
	return nil, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBracketFor(t *testing.T) {
	tests := []struct {
		weight  string
		want    string
		wantErr error
	}{
		{weight: "0.3", want: "0.5"},
		{weight: "0.5", want: "0.5"},
		{weight: "1.2", want: "2"},
		{weight: "1.5", want: "2"},
		{weight: "2", want: "2"},
		{weight: "26", want: "28"},
		{weight: "50", want: "50"},
		{weight: "60", wantErr: ErrNoRateDefined},
		{weight: "0", wantErr: ErrInvalidWeight},
		{weight: "-1", wantErr: ErrInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.weight+"kg", func(t *testing.T) {
			got, err := BracketFor(d(tt.weight))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestResolve_CustomerListWins(t *testing.T) {
	r := NewResolver(&mockRateRepo{
		custom:   map[string]decimal.Decimal{"2": d("55")},
		defaults: map[string]decimal.Decimal{"2": d("80")},
	})

	price, err := r.Resolve(context.Background(), "cust-1", d("1.2"))
	require.NoError(t, err)
	assert.True(t, d("55").Equal(price))
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	r := NewResolver(&mockRateRepo{
		defaults: map[string]decimal.Decimal{"2": d("80")},
	})

	// Customer has no rate list: 1.5kg rounds up to the 2kg bracket.
	price, err := r.Resolve(context.Background(), "cust-1", d("1.5"))
	require.NoError(t, err)
	assert.True(t, d("80").Equal(price))
}

func TestResolve_MissingBracketEverywhere(t *testing.T) {
	r := NewResolver(&mockRateRepo{
		defaults: map[string]decimal.Decimal{"0.5": d("40")},
	})

	_, err := r.Resolve(context.Background(), "cust-1", d("5"))
	require.ErrorIs(t, err, ErrRateNotConfigured)
}

func TestResolve_OverMaxWeight(t *testing.T) {
	r := NewResolver(&mockRateRepo{
		defaults: map[string]decimal.Decimal{"50": d("900")},
	})

	_, err := r.Resolve(context.Background(), "cust-1", d("60"))
	require.ErrorIs(t, err, ErrNoRateDefined)
}

func TestResolve_EmptyCustomerSkipsCustomLookup(t *testing.T) {
	r := NewResolver(&mockRateRepo{
		customErr: assert.AnError,
		defaults:  map[string]decimal.Decimal{"0.5": d("40")},
	})

	price, err := r.Resolve(context.Background(), "", d("0.4"))
	require.NoError(t, err)
	assert.True(t, d("40").Equal(price))
}
