package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

// RecordRun persists one reconciliation run summary.
func (s *Store) RecordRun(ctx context.Context, run storage.RunRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	run.RunID = strings.TrimSpace(run.RunID)
	run.Trigger = strings.TrimSpace(run.Trigger)
	run.Status = strings.TrimSpace(run.Status)
	run.LastError = strings.TrimSpace(run.LastError)
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Trigger == "" {
		return fmt.Errorf("trigger is required")
	}
	if run.Status == "" {
		return fmt.Errorf("status is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reconcile_runs (
	run_id,
	trigger,
	status,
	dry_run,
	candidates,
	invoiced,
	skipped,
	failed,
	notification_failed,
	last_error,
	started_at,
	finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.RunID,
		run.Trigger,
		run.Status,
		boolInt(run.DryRun),
		run.Candidates,
		run.Invoiced,
		run.Skipped,
		run.Failed,
		run.NotificationFailed,
		run.LastError,
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record run %s: %w", run.RunID, storage.ErrConflict)
		}
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns lists newest-first run records.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	run_id,
	trigger,
	status,
	dry_run,
	candidates,
	invoiced,
	skipped,
	failed,
	notification_failed,
	last_error,
	started_at,
	finished_at
FROM reconcile_runs
ORDER BY started_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	records := make([]storage.RunRecord, 0, limit)
	for rows.Next() {
		var (
			record     storage.RunRecord
			dryRun     int
			startedAt  int64
			finishedAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Trigger,
			&record.Status,
			&dryRun,
			&record.Candidates,
			&record.Invoiced,
			&record.Skipped,
			&record.Failed,
			&record.NotificationFailed,
			&record.LastError,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.DryRun = dryRun != 0
		record.StartedAt = time.UnixMilli(startedAt).UTC()
		record.FinishedAt = time.UnixMilli(finishedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}
