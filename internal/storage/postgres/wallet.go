package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/wallet"
)

var _ wallet.Store = (*WalletStore)(nil)

// WalletStore implements wallet.Store backed by PostgreSQL. Every balance
// change locks the wallet row and appends the ledger entry in the same
// transaction, keeping balance == signed sum of transactions at all times.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore returns a WalletStore that uses the given pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// GetByCustomer returns the customer's wallet, or wallet.ErrNotFound.
func (s *WalletStore) GetByCustomer(ctx context.Context, customerID string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := s.pool.QueryRow(ctx,
		`SELECT id, customer_id, balance, created_at, updated_at
		 FROM wallets WHERE customer_id = $1`,
		customerID,
	).Scan(&w.ID, &w.CustomerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting wallet for customer %q", customerID)
	}
	return &w, nil
}

// Debit decrements the balance and appends a DEBIT entry atomically.
func (s *WalletStore) Debit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		balance, err := lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return wallet.ErrInsufficientBalance
		}
		return applyLedgerEntry(ctx, tx, walletID, amount.Neg(), ledgerEntry{
			amount: amount, txType: wallet.TransactionDebit, reason: reason, orderID: orderID,
		})
	})
}

// Credit increments the balance and appends a CREDIT entry atomically.
func (s *WalletStore) Credit(ctx context.Context, walletID string, amount decimal.Decimal, reason string, orderID *string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := lockWallet(ctx, tx, walletID); err != nil {
			return err
		}
		return applyLedgerEntry(ctx, tx, walletID, amount, ledgerEntry{
			amount: amount, txType: wallet.TransactionCredit, reason: reason, orderID: orderID,
		})
	})
}

// CreateRequest records a top-up claim awaiting admin approval.
func (s *WalletStore) CreateRequest(ctx context.Context, req *wallet.Request) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO wallet_requests (id, wallet_id, amount, reference_no, approved)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING created_at`,
		req.ID, req.WalletID, req.Amount, req.ReferenceNo,
	).Scan(&req.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "creating wallet request %q", req.ID)
	}
	return nil
}

// ApproveRequest flips the approved flag and credits the wallet in one
// transaction. The request row lock plus the approved re-check make approval
// exactly-once: a concurrent or repeated attempt sees approved=TRUE and gets
// wallet.ErrAlreadyApproved with no balance effect.
func (s *WalletStore) ApproveRequest(ctx context.Context, requestID string) (*wallet.Request, error) {
	var req wallet.Request
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT id, wallet_id, amount, reference_no, approved, created_at
			 FROM wallet_requests WHERE id = $1 FOR UPDATE`,
			requestID,
		).Scan(&req.ID, &req.WalletID, &req.Amount, &req.ReferenceNo, &req.Approved, &req.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return wallet.ErrRequestNotFound
			}
			return errors.Wrap(err, "lock wallet request")
		}
		if req.Approved {
			return wallet.ErrAlreadyApproved
		}

		if _, err := tx.Exec(ctx,
			`UPDATE wallet_requests SET approved = TRUE WHERE id = $1`, requestID,
		); err != nil {
			return errors.Wrap(err, "approve wallet request")
		}

		if _, err := lockWallet(ctx, tx, req.WalletID); err != nil {
			return err
		}
		if err := applyLedgerEntry(ctx, tx, req.WalletID, req.Amount, ledgerEntry{
			amount: req.Amount, txType: wallet.TransactionCredit,
			reason: "top-up " + req.ReferenceNo,
		}); err != nil {
			return err
		}

		req.Approved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListTransactions returns ledger entries for the wallet, newest first.
func (s *WalletStore) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]wallet.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, wallet_id, amount, type, reason, order_id, created_at
		 FROM transactions WHERE wallet_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing transactions")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Transaction, error) {
		var (
			t      wallet.Transaction
			txType string
		)
		err := row.Scan(&t.ID, &t.WalletID, &t.Amount, &txType, &t.Reason, &t.OrderID, &t.CreatedAt)
		t.Type = wallet.TransactionType(txType)
		return t, err
	})
}

type ledgerEntry struct {
	amount  decimal.Decimal
	txType  wallet.TransactionType
	reason  string
	orderID *string
}

// lockWallet takes the row lock and returns the current balance.
func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, wallet.ErrNotFound
		}
		return decimal.Zero, errors.Wrap(err, "lock wallet")
	}
	return balance, nil
}

// applyLedgerEntry adjusts the cached balance by delta and appends the
// transaction row. Callers must hold the wallet row lock.
func applyLedgerEntry(ctx context.Context, tx pgx.Tx, walletID string, delta decimal.Decimal, e ledgerEntry) error {
	if _, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		walletID, delta,
	); err != nil {
		return errors.Wrap(err, "update balance")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, wallet_id, amount, type, reason, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), walletID, e.amount, string(e.txType), e.reason, e.orderID,
	); err != nil {
		return errors.Wrap(err, "append transaction")
	}
	return nil
}
