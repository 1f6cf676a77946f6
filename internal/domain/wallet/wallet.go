// Package wallet models customer wallets as an append-only transaction ledger
// with a cached balance.
package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TransactionType marks the direction of a ledger entry.
type TransactionType string

const (
	// TransactionDebit removes funds from the wallet.
	TransactionDebit TransactionType = "DEBIT"
	// TransactionCredit adds funds to the wallet.
	TransactionCredit TransactionType = "CREDIT"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the current
	// balance. The wallet is left untouched.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrAlreadyApproved is returned when a top-up request is approved a
	// second time. The first approval is the only one that credits.
	ErrAlreadyApproved = errors.New("wallet request already approved")
	// ErrNonPositiveAmount is returned for zero or negative amounts on any
	// balance-changing operation.
	ErrNonPositiveAmount = errors.New("amount must be greater than 0")
	// ErrNotFound is returned when no wallet exists for the customer.
	ErrNotFound = errors.New("wallet not found")
	// ErrRequestNotFound is returned when a top-up request does not exist.
	ErrRequestNotFound = errors.New("wallet request not found")
)

// Wallet holds a customer's cached balance. The balance always equals the
// signed sum of the wallet's transactions.
type Wallet struct {
	ID         string
	CustomerID string
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transaction is an immutable ledger entry. Amounts are stored positive; the
// sign is carried by Type.
type Transaction struct {
	ID        string
	WalletID  string
	Amount    decimal.Decimal
	Type      TransactionType
	Reason    string
	OrderID   *string
	CreatedAt time.Time
}

// Request is a customer-submitted top-up claim awaiting admin approval.
type Request struct {
	ID          string
	WalletID    string
	Amount      decimal.Decimal
	ReferenceNo string
	Approved    bool
	CreatedAt   time.Time
}

// Store persists wallets, requests, and transactions. Every balance change
// appends exactly one transaction and adjusts the cached balance in the same
// storage transaction.
type Store interface {
	GetByCustomer(ctx context.Context, customerID string) (*Wallet, error)
	// Debit atomically decrements the balance and appends a DEBIT entry.
	// Returns ErrInsufficientBalance when balance < amount.
	Debit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error
	// Credit atomically increments the balance and appends a CREDIT entry.
	Credit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error
	CreateRequest(ctx context.Context, req *Request) error
	// ApproveRequest marks the request approved and credits its wallet in one
	// transaction. Returns ErrAlreadyApproved when the request was already
	// approved, making re-approval attempts safe under retries.
	ApproveRequest(ctx context.Context, requestID string) (*Request, error)
	ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error)
}

// SignedSum folds transactions into a balance: credits positive, debits
// negative. For a consistent wallet, SignedSum(all entries) == Wallet.Balance.
func SignedSum(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case TransactionCredit:
			sum = sum.Add(tx.Amount)
		case TransactionDebit:
			sum = sum.Sub(tx.Amount)
		}
	}
	return sum
}
