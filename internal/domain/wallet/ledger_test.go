package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that mirrors the atomicity contract of the
// postgres implementation: balance and ledger move together or not at all.
type memStore struct {
	wallet   Wallet
	txs      []Transaction
	requests map[string]*Request
}

func newMemStore(balance string) *memStore {
	return &memStore{
		wallet: Wallet{
			ID:         "w1",
			CustomerID: "cust-1",
			Balance:    decimal.RequireFromString(balance),
		},
		requests: make(map[string]*Request),
	}
}

func (m *memStore) GetByCustomer(_ context.Context, customerID string) (*Wallet, error) {
	if customerID != m.wallet.CustomerID {
		return nil, ErrNotFound
	}
	w := m.wallet
	return &w, nil
}

func (m *memStore) Debit(_ context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	if m.wallet.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	m.wallet.Balance = m.wallet.Balance.Sub(amount)
	m.txs = append(m.txs, Transaction{WalletID: walletID, Amount: amount, Type: TransactionDebit, Reason: reason, OrderID: orderID})
	return nil
}

func (m *memStore) Credit(_ context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	m.wallet.Balance = m.wallet.Balance.Add(amount)
	m.txs = append(m.txs, Transaction{WalletID: walletID, Amount: amount, Type: TransactionCredit, Reason: reason, OrderID: orderID})
	return nil
}

func (m *memStore) CreateRequest(_ context.Context, req *Request) error {
	m.requests[req.ID] = req
	return nil
}

func (m *memStore) ApproveRequest(ctx context.Context, requestID string) (*Request, error) {
	req, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Approved {
		return nil, ErrAlreadyApproved
	}
	req.Approved = true
	if err := m.Credit(ctx, req.WalletID, req.Amount, "wallet top-up", nil); err != nil {
		return nil, err
	}
	return req, nil
}

func (m *memStore) ListTransactions(_ context.Context, _ string, _, _ int) ([]Transaction, error) {
	return m.txs, nil
}

func TestLedger_DebitInsufficientBalance(t *testing.T) {
	store := newMemStore("50")
	l := NewLedger(store)

	err := l.Debit(context.Background(), "w1", decimal.RequireFromString("80"), "order charge", nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing moved: no ledger entry, balance intact.
	assert.Empty(t, store.txs)
	assert.True(t, decimal.RequireFromString("50").Equal(store.wallet.Balance))
}

func TestLedger_DebitRejectsNonPositive(t *testing.T) {
	l := NewLedger(newMemStore("50"))

	err := l.Debit(context.Background(), "w1", decimal.Zero, "noop", nil)
	require.ErrorIs(t, err, ErrNonPositiveAmount)

	err = l.Credit(context.Background(), "w1", decimal.RequireFromString("-5"), "noop", nil)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestLedger_ApproveRequestCreditsOnce(t *testing.T) {
	store := newMemStore("0")
	l := NewLedger(store)
	ctx := context.Background()

	req, err := l.SubmitRequest(ctx, "cust-1", decimal.RequireFromString("500"), "UTR-991")
	require.NoError(t, err)
	assert.False(t, req.Approved)

	approved, err := l.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.True(t, decimal.RequireFromString("500").Equal(store.wallet.Balance))

	// Second approval must not credit again.
	_, err = l.ApproveRequest(ctx, req.ID)
	require.ErrorIs(t, err, ErrAlreadyApproved)
	assert.True(t, decimal.RequireFromString("500").Equal(store.wallet.Balance))
	assert.Len(t, store.txs, 1)
}

func TestLedger_ApproveUnknownRequest(t *testing.T) {
	l := NewLedger(newMemStore("0"))

	_, err := l.ApproveRequest(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestSignedSum_MatchesBalance(t *testing.T) {
	store := newMemStore("0")
	l := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, l.Credit(ctx, "w1", decimal.RequireFromString("1000"), "top-up", nil))
	orderID := "ord-1"
	require.NoError(t, l.Debit(ctx, "w1", decimal.RequireFromString("120.50"), "order charge", &orderID))
	require.NoError(t, l.Debit(ctx, "w1", decimal.RequireFromString("79.50"), "order charge", &orderID))
	require.NoError(t, l.Credit(ctx, "w1", decimal.RequireFromString("30"), "refund", &orderID))

	txs, err := l.Transactions(ctx, "w1", 100, 0)
	require.NoError(t, err)
	assert.True(t, SignedSum(txs).Equal(store.wallet.Balance),
		"balance %s != signed sum %s", store.wallet.Balance, SignedSum(txs))
	assert.True(t, decimal.RequireFromString("830").Equal(store.wallet.Balance))
}
