package wallet

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the domain entry point for all wallet mutations. It validates
// amounts before delegating to the Store, which is responsible for atomicity.
type Ledger struct {
	store Store
}

// NewLedger creates a Ledger backed by the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the customer's wallet with its cached balance.
func (l *Ledger) Balance(ctx context.Context, customerID string) (*Wallet, error) {
	return l.store.GetByCustomer(ctx, customerID)
}

// Debit removes amount from the wallet, recording a DEBIT transaction.
// Fails with ErrInsufficientBalance when the wallet cannot cover the amount.
func (l *Ledger) Debit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if err := l.store.Debit(ctx, walletID, amount, reason, orderID); err != nil {
		return errors.Wrap(err, "debit wallet")
	}
	return nil
}

// Credit adds amount to the wallet, recording a CREDIT transaction.
func (l *Ledger) Credit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if err := l.store.Credit(ctx, walletID, amount, reason, orderID); err != nil {
		return errors.Wrap(err, "credit wallet")
	}
	return nil
}

// SubmitRequest records a customer's top-up claim for later admin approval.
func (l *Ledger) SubmitRequest(ctx context.Context, customerID string, amount decimal.Decimal, referenceNo string) (*Request, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	w, err := l.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get wallet")
	}

	req := &Request{
		ID:          uuid.New().String(),
		WalletID:    w.ID,
		Amount:      amount,
		ReferenceNo: referenceNo,
	}
	if err := l.store.CreateRequest(ctx, req); err != nil {
		return nil, errors.Wrap(err, "create wallet request")
	}
	return req, nil
}

// ApproveRequest approves a pending top-up request, crediting the wallet
// exactly once. A second approval attempt returns ErrAlreadyApproved.
func (l *Ledger) ApproveRequest(ctx context.Context, requestID string) (*Request, error) {
	req, err := l.store.ApproveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Transactions returns the wallet's ledger entries, newest first.
func (l *Ledger) Transactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	return l.store.ListTransactions(ctx, walletID, limit, offset)
}
