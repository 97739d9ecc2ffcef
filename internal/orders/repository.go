package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. Item lists are
// stored as jsonb and round-trip through encoding/json.
//
// The sold_total column is optional: older schemas do not carry it.
// Instead of retrying failed writes with the column stripped, the
// repository probes the schema once at startup and shapes the delivery
// update accordingly.
type Repository struct {
	pool         *pgxpool.Pool
	hasSoldTotal bool
}

// NewRepository constructs a repository, probing optional columns.
func NewRepository(ctx context.Context, pool *pgxpool.Pool) (*Repository, error) {
	r := &Repository{pool: pool}
	err := pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM information_schema.columns
WHERE table_name = 'orders' AND column_name = 'sold_total')`).Scan(&r.hasSoldTotal)
	if err != nil {
		return nil, fmt.Errorf("orders: probe schema: %w", err)
	}
	return r, nil
}

const orderColumns = `id, number, customer_id, customer_name, assigned_user_id, status,
order_items, backordered_items, expected_delivery, order_date, total,
amount_paid, cheque_balance, credit_balance, return_amount, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                Order
		rawItems, rawBak []byte
	)
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.CustomerName, &o.AssignedUserID, &o.Status,
		&rawItems, &rawBak, &o.ExpectedDelivery, &o.OrderDate, &o.Total,
		&o.AmountPaid, &o.ChequeBalance, &o.CreditBalance, &o.ReturnAmount, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(rawItems, &o.Items); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(rawBak, &o.BackorderedItems); err != nil {
		return Order{}, err
	}
	return o, nil
}

// GetOrder fetches one order by id.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns orders, optionally filtered by status, newest first.
func (r *Repository) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateOrder inserts the order and assigns its server-issued document
// number from the generated id.
func (r *Repository) CreateOrder(ctx context.Context, o Order) (Order, error) {
	rawItems, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, err
	}
	rawBak, err := json.Marshal(o.BackorderedItems)
	if err != nil {
		return Order{}, err
	}
	var created Order
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO orders
(number, customer_id, customer_name, assigned_user_id, status, order_items, backordered_items,
 expected_delivery, order_date, total, amount_paid, cheque_balance, credit_balance, return_amount,
 notes, created_at, updated_at)
VALUES ('', $1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, 0, 0, $10, NOW(), NOW())
RETURNING id`,
			o.CustomerID, o.CustomerName, o.AssignedUserID, o.Status, rawItems, rawBak,
			o.ExpectedDelivery, o.OrderDate, o.Total, o.Notes).Scan(&id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET number = 'ORD-' || lpad(id::text, 5, '0') WHERE id = $1`, id); err != nil {
			return err
		}
		created, err = scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return created, nil
}

// UpdateOrder rewrites the editable fields of a Pending order.
func (r *Repository) UpdateOrder(ctx context.Context, o Order) error {
	rawItems, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	rawBak, err := json.Marshal(o.BackorderedItems)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE orders
SET order_items = $2, backordered_items = $3, expected_delivery = $4, total = $5, notes = $6, updated_at = NOW()
WHERE id = $1 AND status = 'Pending'`,
		o.ID, rawItems, rawBak, o.ExpectedDelivery, o.Total, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetOrder(ctx, o.ID); getErr != nil {
			return getErr
		}
		return ErrNotPending
	}
	return nil
}

// SumPendingQuantities sums requested quantity per product across the
// fulfillable lines of all Pending orders except the one being edited.
// Return lines do not reserve stock.
func (r *Repository) SumPendingQuantities(ctx context.Context, excludeOrderID int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT (item->>'productId')::bigint, SUM((item->>'quantity')::bigint)
FROM orders, jsonb_array_elements(order_items) item
WHERE status = 'Pending' AND id <> $1
  AND COALESCE((item->>'isReturn')::boolean, false) = false
GROUP BY 1`, excludeOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int64)
	for rows.Next() {
		var productID, qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		out[productID] = qty
	}
	return out, rows.Err()
}

// MarkDelivered flips a not-yet-delivered order to Delivered. The
// status guard lives in the UPDATE so two concurrent finalizations
// cannot both observe Pending; exactly one caller wins.
func (r *Repository) MarkDelivered(ctx context.Context, id int64, soldTotal int64) (bool, error) {
	query := `UPDATE orders SET status = 'Delivered', updated_at = NOW()
WHERE id = $1 AND status <> 'Delivered'`
	args := []any{id}
	if r.hasSoldTotal {
		query = `UPDATE orders SET status = 'Delivered', sold_total = $2, updated_at = NOW()
WHERE id = $1 AND status <> 'Delivered'`
		args = append(args, soldTotal)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SaveBalances persists all four financial fields.
func (r *Repository) SaveBalances(ctx context.Context, id int64, amountPaid, chequeBalance, creditBalance, returnAmount float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders
SET amount_paid = $2, cheque_balance = $3, credit_balance = $4, return_amount = $5, updated_at = NOW()
WHERE id = $1`, id, amountPaid, chequeBalance, creditBalance, returnAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteOrder removes the row outright; there is no soft delete.
func (r *Repository) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
