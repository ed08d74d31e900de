package stats

import (
	"testing"
	"time"
)

func TestRecordSubmittedAndCompletion(t *testing.T) {
	s := New()
	s.RecordSubmitted()
	s.RecordSubmitted()
	s.RecordCompletion("succeeded", 100*time.Millisecond)
	s.RecordCompletion("failed", 200*time.Millisecond)

	snap := s.Snapshot()
	if snap.Submitted != 2 {
		t.Errorf("Submitted = %d, want 2", snap.Submitted)
	}
	if snap.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", snap.Succeeded)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if snap.AverageLatency != 100*time.Millisecond {
		t.Errorf("AverageLatency = %v, want 100ms", snap.AverageLatency)
	}
}

func TestSnapshotWithNoCompletions(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	if snap.AverageLatency != 0 {
		t.Errorf("AverageLatency = %v, want 0", snap.AverageLatency)
	}
}
