// Package store persists an append-only audit log of task submissions
// and their terminal outcomes. This is deliberately not a durable task
// queue (SPEC_FULL.md's Non-goals exclude persistent scheduling state —
// the scheduler itself is in-memory and does not survive a restart); it
// exists purely so operators can query what ran after the fact.
package store

import (
	"context"
	"time"
)

// SubmissionRecord is one row of the audit log.
type SubmissionRecord struct {
	TaskID      string
	ModelID     string
	Priority    int
	Status      string
	SubmittedAt time.Time
	FinishedAt  *time.Time
	ErrorMsg    string
}

// ListOptions controls pagination for ListRecent.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store is the audit log persistence contract.
type Store interface {
	RecordSubmission(ctx context.Context, rec SubmissionRecord) error
	RecordCompletion(ctx context.Context, taskID, status string, finishedAt time.Time, errMsg string) error
	ListRecent(ctx context.Context, opts ListOptions) ([]SubmissionRecord, error)
	Close() error
	Migrate(ctx context.Context) error
}
