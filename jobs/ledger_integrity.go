package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunLedgerIntegrityCheck verifies that every posted journal entry still
// balances. Imbalances are logged, not repaired.
func RunLedgerIntegrityCheck(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	rows, err := pool.Query(ctx, `SELECT je.id, SUM(jl.debit) - SUM(jl.credit)
FROM journal_entries je
JOIN journal_lines jl ON jl.je_id = je.id
WHERE je.status = 'POSTED'
GROUP BY je.id
HAVING ABS(SUM(jl.debit) - SUM(jl.credit)) > 0.009`)
	if err != nil {
		if logger != nil {
			logger.Error("ledger integrity query", slog.Any("error", err))
		}
		return err
	}
	defer rows.Close()
	unbalanced := 0
	for rows.Next() {
		var id int64
		var diff float64
		if err := rows.Scan(&id, &diff); err != nil {
			return err
		}
		unbalanced++
		if logger != nil {
			logger.Warn("unbalanced journal entry", slog.Int64("entry_id", id), slog.Float64("diff", diff))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("ledger integrity check", slog.Int("unbalanced", unbalanced))
	}
	return nil
}
