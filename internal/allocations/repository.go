package allocations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. Allocation items are
// stored as a single jsonb column and round-trip through encoding/json.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const allocationColumns = `id, driver_id, alloc_date, items, sales_total, status, created_at, updated_at`

func scanAllocation(row pgx.Row) (DriverAllocation, error) {
	var (
		a   DriverAllocation
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.DriverID, &a.Date, &raw, &a.SalesTotal, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return DriverAllocation{}, err
	}
	if err := json.Unmarshal(raw, &a.Items); err != nil {
		return DriverAllocation{}, err
	}
	return a, nil
}

// GetAllocation fetches one allocation by id.
func (r *Repository) GetAllocation(ctx context.Context, id int64) (DriverAllocation, error) {
	a, err := scanAllocation(r.pool.QueryRow(ctx, `SELECT `+allocationColumns+` FROM driver_allocations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DriverAllocation{}, ErrAllocationNotFound
		}
		return DriverAllocation{}, err
	}
	return a, nil
}

// ListByDriver returns a driver's allocations oldest first.
func (r *Repository) ListByDriver(ctx context.Context, driverID int64) ([]DriverAllocation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+allocationColumns+` FROM driver_allocations
WHERE driver_id = $1 ORDER BY alloc_date, id`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

// ListAllocations returns all allocations, newest first, for listings.
func (r *Repository) ListAllocations(ctx context.Context) ([]DriverAllocation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+allocationColumns+` FROM driver_allocations
ORDER BY alloc_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func collectAllocations(rows pgx.Rows) ([]DriverAllocation, error) {
	var out []DriverAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAllocation inserts a new allocation row.
func (r *Repository) CreateAllocation(ctx context.Context, a DriverAllocation) (int64, error) {
	raw, err := json.Marshal(a.Items)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO driver_allocations (driver_id, alloc_date, items, sales_total, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		a.DriverID, a.Date, raw, a.SalesTotal, a.Status).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveReconciled persists a reconciled allocation's items, sales total
// and status.
func (r *Repository) SaveReconciled(ctx context.Context, a DriverAllocation) error {
	raw, err := json.Marshal(a.Items)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE driver_allocations
SET items = $2, sales_total = $3, status = $4, updated_at = NOW() WHERE id = $1`,
		a.ID, raw, a.SalesTotal, a.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}
	return nil
}

// parseAllocDate normalises the request date to midnight UTC.
func parseAllocDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
