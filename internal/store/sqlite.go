package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a modernc.org/sqlite database,
// grounded on the teacher's sql.Open("sqlite", ...) plus WAL/foreign_keys
// pragma convention.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path.
// Use ":memory:" for an ephemeral store, e.g. in tests.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set foreign_keys: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.With("component", "store")}, nil
}

// Migrate applies the schema, idempotently.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordSubmission inserts a new audit row for a just-submitted task.
func (s *SQLiteStore) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	s.logger.Debug("record submission", "task_id", rec.TaskID, "model_id", rec.ModelID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submission_log (task_id, model_id, priority, status, submitted_at, error_msg)
		VALUES (?, ?, ?, ?, ?, '')`,
		rec.TaskID, rec.ModelID, rec.Priority, rec.Status, rec.SubmittedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// RecordCompletion updates the audit row for taskID with its terminal
// status.
func (s *SQLiteStore) RecordCompletion(ctx context.Context, taskID, status string, finishedAt time.Time, errMsg string) error {
	s.logger.Debug("record completion", "task_id", taskID, "status", status)
	_, err := s.db.ExecContext(ctx, `
		UPDATE submission_log
		SET status = ?, finished_at = ?, error_msg = ?
		WHERE task_id = ?`,
		status, finishedAt.Format(time.RFC3339Nano), errMsg, taskID,
	)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// ListRecent returns the most recently submitted rows, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, opts ListOptions) ([]SubmissionRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, model_id, priority, status, submitted_at, finished_at, error_msg
		FROM submission_log
		ORDER BY submitted_at DESC
		LIMIT ? OFFSET ?`,
		limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var rec SubmissionRecord
		var submittedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&rec.TaskID, &rec.ModelID, &rec.Priority, &rec.Status, &submittedAt, &finishedAt, &rec.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		rec.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, finishedAt.String)
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
