// Package journal contains the SQLite implementation of the run journal.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/certward/internal/ports/secondary"
)

// Repository implements secondary.RunJournal with SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite run journal repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record persists a finished run.
func (r *Repository) Record(ctx context.Context, run *secondary.RunRecord) error {
	var failedStage, errorText sql.NullString
	if run.FailedStage != "" {
		failedStage = sql.NullString{String: run.FailedStage, Valid: true}
	}
	if run.ErrorText != "" {
		errorText = sql.NullString{String: run.ErrorText, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, hostname, environment, action, outcome, reason, failed_stage, error_text, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Hostname, run.Environment, run.Action, run.Outcome, run.Reason,
		failedStage, errorText, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// List retrieves runs matching the given filters, newest first.
func (r *Repository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	query := `SELECT id, hostname, environment, action, outcome, reason, failed_stage, error_text, started_at, finished_at FROM runs WHERE 1=1`
	args := []any{}

	if filters.Hostname != "" {
		query += " AND hostname = ?"
		args = append(args, filters.Hostname)
	}

	query += " ORDER BY started_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*secondary.RunRecord
	for rows.Next() {
		var failedStage, errorText sql.NullString

		record := &secondary.RunRecord{}
		err := rows.Scan(&record.ID, &record.Hostname, &record.Environment, &record.Action,
			&record.Outcome, &record.Reason, &failedStage, &errorText,
			&record.StartedAt, &record.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.FailedStage = failedStage.String
		record.ErrorText = errorText.String

		runs = append(runs, record)
	}

	return runs, nil
}

var _ secondary.RunJournal = (*Repository)(nil)
