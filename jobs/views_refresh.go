package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshReceivablesSummary refreshes the receivables reporting view
// after deliveries and balance saves so downstream reads stay current.
func RefreshReceivablesSummary(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	if _, err := pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY receivables_summary`); err != nil {
		if logger != nil {
			logger.Error("refresh receivables_summary", slog.Any("error", err))
		}
		return err
	}
	if logger != nil {
		logger.Info("refreshed receivables_summary", slog.String("job", "views_refresh"))
	}
	return nil
}
