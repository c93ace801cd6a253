package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// CleanupService purges sessions past the retention window, along with their
// evaluation reports. Soft-deleted sessions are removed regardless of age once
// they are a day old.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays}
}

// CleanupOldData removes data older than the retention period.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)
	softDeleteCutoff := time.Now().UTC().AddDate(0, 0, -1)

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("cleanup begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	evalTag, err := tx.Exec(ctx, `
		DELETE FROM evaluations
		WHERE session_id IN (
			SELECT id FROM sessions
			WHERE created_at < $1 OR (deleted AND updated_at < $2)
		)`, cutoff, softDeleteCutoff)
	if err != nil {
		return fmt.Errorf("cleanup evaluations: %w", err)
	}

	sessTag, err := tx.Exec(ctx, `
		DELETE FROM sessions
		WHERE created_at < $1 OR (deleted AND updated_at < $2)`,
		cutoff, softDeleteCutoff)
	if err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cleanup commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_sessions", sessTag.RowsAffected()),
		slog.Int64("deleted_evaluations", evalTag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return nil
}

// RunPeriodic starts a periodic cleanup job.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
