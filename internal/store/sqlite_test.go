package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordSubmissionAndListRecent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := SubmissionRecord{
		TaskID:      "t1",
		ModelID:     "m1",
		Priority:    3,
		Status:      "pending",
		SubmittedAt: time.Now(),
	}
	if err := st.RecordSubmission(ctx, rec); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}

	recs, err := st.ListRecent(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 1 || recs[0].TaskID != "t1" {
		t.Fatalf("ListRecent = %+v, want one record for t1", recs)
	}
	if recs[0].FinishedAt != nil {
		t.Error("FinishedAt should be nil before completion is recorded")
	}
}

func TestRecordCompletion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := SubmissionRecord{TaskID: "t1", ModelID: "m1", Status: "pending", SubmittedAt: time.Now()}
	if err := st.RecordSubmission(ctx, rec); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}

	finishedAt := time.Now()
	if err := st.RecordCompletion(ctx, "t1", "succeeded", finishedAt, ""); err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}

	recs, err := st.ListRecent(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != "succeeded" {
		t.Fatalf("ListRecent = %+v, want status succeeded", recs)
	}
	if recs[0].FinishedAt == nil {
		t.Error("FinishedAt should be set after completion")
	}
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	st.RecordSubmission(ctx, SubmissionRecord{TaskID: "older", ModelID: "m1", Status: "pending", SubmittedAt: base})
	st.RecordSubmission(ctx, SubmissionRecord{TaskID: "newer", ModelID: "m1", Status: "pending", SubmittedAt: base.Add(time.Second)})

	recs, err := st.ListRecent(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 2 || recs[0].TaskID != "newer" {
		t.Fatalf("ListRecent = %+v, want newer first", recs)
	}
}
