package store

// schema contains the DDL for the audit log table. The single statement
// uses IF NOT EXISTS for idempotency, matching the teacher's migration
// convention.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS submission_log (
		task_id      TEXT PRIMARY KEY,
		model_id     TEXT NOT NULL,
		priority     INTEGER NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'pending',
		submitted_at TEXT NOT NULL,
		finished_at  TEXT,
		error_msg    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_submission_log_status ON submission_log(status)`,
	`CREATE INDEX IF NOT EXISTS idx_submission_log_submitted_at ON submission_log(submitted_at)`,
}
