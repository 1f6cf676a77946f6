package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/order"
	"github.com/shipstack/courier-api/internal/domain/wallet"
)

const (
	createOrderSQL = `INSERT INTO orders (
		id, customer_id, pickup_location, weight_kg, length_cm, width_cm, height_cm,
		insured, status, price, discount, promo_code
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING created_at, updated_at`

	orderColumns = `id, customer_id, pickup_location, weight_kg, length_cm, width_cm,
		height_cm, insured, status, price, discount, promo_code, created_at, updated_at`

	shipmentColumns = `id, order_id, awb_number, courier_provider, delivery_status,
		sub_status, latest_event, external_tracking_id, created_at, updated_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order in its initial state. When a promocode was
// applied, the usage counter bump and the usage row commit in the same
// transaction: a failed insert rolls everything back and the code stays
// unconsumed.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, promoUse *order.PromoUsage) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createOrderSQL,
			o.ID, o.CustomerID, o.PickupLocation, o.WeightKg, o.LengthCm, o.WidthCm,
			o.HeightCm, o.Insured, string(o.Status), o.Price, o.Discount, o.PromoCode,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return errors.Wrapf(err, "creating order %q", o.ID)
		}

		if promoUse == nil {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`UPDATE promocodes SET uses = uses + 1 WHERE id = $1`, promoUse.PromocodeID,
		); err != nil {
			return errors.Wrap(err, "increment promocode uses")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO promocode_usages (promocode_id, customer_id, order_id)
			 VALUES ($1, $2, $3)`,
			promoUse.PromocodeID, o.CustomerID, o.ID,
		); err != nil {
			return errors.Wrap(err, "record promocode usage")
		}
		return nil
	})
}

// GetByID returns a single order. Returns order.ErrNotFound when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	return &o, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// GetShipmentByOrder returns the order's shipment, or order.ErrShipmentNotFound.
func (r *OrderRepository) GetShipmentByOrder(ctx context.Context, orderID string) (*order.Shipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting shipment for order %q", orderID)
	}

	sh, err := pgx.CollectExactlyOneRow(rows, scanShipment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrShipmentNotFound
		}
		return nil, errors.Wrapf(err, "getting shipment for order %q", orderID)
	}
	return &sh, nil
}

// Approve books a PENDING order as one transaction: the order row is locked,
// the status re-checked, the shipment inserted, the wallet debited with a
// DEBIT ledger entry, and the status set to BOOKED. Any failure rolls back
// the whole unit. Concurrent approvals serialize on the order row lock and
// the loser sees a non-PENDING status.
func (r *OrderRepository) Approve(ctx context.Context, p order.ApproveParams) (*order.Shipment, error) {
	var sh order.Shipment
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			customerID string
			status     string
			price      decimal.Decimal
		)
		err := tx.QueryRow(ctx,
			`SELECT customer_id, status, price FROM orders WHERE id = $1 FOR UPDATE`,
			p.OrderID,
		).Scan(&customerID, &status, &price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrap(err, "lock order")
		}
		if order.Status(status) != order.StatusPending {
			return order.ErrNotPending
		}

		var (
			walletID string
			balance  decimal.Decimal
		)
		err = tx.QueryRow(ctx,
			`SELECT id, balance FROM wallets WHERE customer_id = $1 FOR UPDATE`,
			customerID,
		).Scan(&walletID, &balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return wallet.ErrNotFound
			}
			return errors.Wrap(err, "lock wallet")
		}
		if balance.LessThan(price) {
			return wallet.ErrInsufficientBalance
		}

		if _, err := tx.Exec(ctx,
			`UPDATE wallets SET balance = balance - $2, updated_at = now() WHERE id = $1`,
			walletID, price,
		); err != nil {
			return errors.Wrap(err, "debit wallet")
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, wallet_id, amount, type, reason, order_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), walletID, price, string(wallet.TransactionDebit),
			"order booking charge", p.OrderID,
		); err != nil {
			return errors.Wrap(err, "record debit")
		}

		sh = order.Shipment{
			ID:              uuid.New().String(),
			OrderID:         p.OrderID,
			AWBNumber:       p.AWBNumber,
			CourierProvider: p.CourierProvider,
			DeliveryStatus:  order.DeliveryInfoReceived,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO shipments (id, order_id, awb_number, courier_provider, delivery_status)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at, updated_at`,
			sh.ID, sh.OrderID, sh.AWBNumber, sh.CourierProvider, string(sh.DeliveryStatus),
		).Scan(&sh.CreatedAt, &sh.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "create shipment")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
			p.OrderID, string(order.StatusBooked),
		); err != nil {
			return errors.Wrap(err, "set order booked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// Reject moves a PENDING order to REJECTED under the same row lock as Approve.
func (r *OrderRepository) Reject(ctx context.Context, orderID string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return errors.Wrap(err, "lock order")
		}
		if order.Status(status) != order.StatusPending {
			return order.ErrNotPending
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
			orderID, string(order.StatusRejected),
		); err != nil {
			return errors.Wrap(err, "set order rejected")
		}
		return nil
	})
}

// ApplyTrackingUpdate writes the delivery fields reported by the tracking
// provider. The shipment row is matched by AWB or external tracking id and
// locked; the update is skipped entirely when nothing would change, so
// at-least-once webhook delivery converges to one final state.
func (r *OrderRepository) ApplyTrackingUpdate(ctx context.Context, u order.TrackingUpdate) (*order.Shipment, error) {
	var sh order.Shipment
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			shipmentID  string
			orderStatus string
		)
		err := tx.QueryRow(ctx,
			`SELECT s.id, o.status
			 FROM shipments s JOIN orders o ON o.id = s.order_id
			 WHERE s.awb_number = $1 OR s.external_tracking_id = $1
			 FOR UPDATE OF s`,
			u.TrackingID,
		).Scan(&shipmentID, &orderStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrShipmentNotFound
			}
			return errors.Wrap(err, "lock shipment")
		}
		if !order.Status(orderStatus).BookedOrLater() {
			return order.ErrNotBooked
		}

		if _, err := tx.Exec(ctx,
			`UPDATE shipments
			 SET delivery_status = $2, sub_status = $3, latest_event = $4, updated_at = now()
			 WHERE id = $1
			   AND (delivery_status, sub_status, latest_event)
			       IS DISTINCT FROM ($2, $3, $4)`,
			shipmentID, string(u.DeliveryStatus), u.SubStatus, u.LatestEvent,
		); err != nil {
			return errors.Wrap(err, "update shipment")
		}

		rows, err := tx.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, shipmentID)
		if err != nil {
			return errors.Wrap(err, "reload shipment")
		}
		sh, err = pgx.CollectExactlyOneRow(rows, scanShipment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.PickupLocation, &o.WeightKg, &o.LengthCm, &o.WidthCm,
		&o.HeightCm, &o.Insured, &status, &o.Price, &o.Discount, &o.PromoCode,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanShipment(row pgx.CollectableRow) (order.Shipment, error) {
	var (
		sh             order.Shipment
		deliveryStatus string
		createdAt      time.Time
		updatedAt      time.Time
	)
	err := row.Scan(
		&sh.ID, &sh.OrderID, &sh.AWBNumber, &sh.CourierProvider, &deliveryStatus,
		&sh.SubStatus, &sh.LatestEvent, &sh.ExternalTrackingID, &createdAt, &updatedAt,
	)
	sh.DeliveryStatus = order.DeliveryStatus(deliveryStatus)
	sh.CreatedAt = createdAt
	sh.UpdatedAt = updatedAt
	return sh, err
}
