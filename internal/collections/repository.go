package collections

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. The collections
// table carries a unique index on (order_id, collection_type) so a
// balance save refreshes the existing row instead of appending.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const collectionColumns = `id, order_id, customer_id, collection_type, amount, collected_by, status, completed_at, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.CustomerID, &rec.Type, &rec.Amount,
		&rec.CollectedBy, &rec.Status, &rec.CompletedAt, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// GetRecord fetches a collection record by id.
func (r *Repository) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrCollectionNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// UpsertRecord inserts or refreshes the (order, type) row, resetting it
// to pending with the new amount.
func (r *Repository) UpsertRecord(ctx context.Context, in UpsertInput) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `INSERT INTO collections
(order_id, customer_id, collection_type, amount, collected_by, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', NOW(), NOW())
ON CONFLICT (order_id, collection_type) DO UPDATE
SET amount = EXCLUDED.amount, collected_by = EXCLUDED.collected_by,
    status = 'pending', completed_at = NULL, updated_at = NOW()
RETURNING `+collectionColumns,
		in.OrderID, in.CustomerID, in.Type, in.Amount, in.CollectedBy))
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByStatus returns records in a status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+collectionColumns+` FROM collections
WHERE status = $1 ORDER BY created_at, id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkComplete flips a pending record to complete. Returns the updated
// row; completing twice is rejected.
func (r *Repository) MarkComplete(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `UPDATE collections
SET status = 'complete', completed_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'pending'
RETURNING `+collectionColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetRecord(ctx, id); getErr != nil {
				return Record{}, getErr
			}
			return Record{}, ErrAlreadyComplete
		}
		return Record{}, err
	}
	return rec, nil
}
