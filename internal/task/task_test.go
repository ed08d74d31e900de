package task

import (
	"testing"
	"time"

	"github.com/example/atomsched/pkg/atomerr"
)

func newTestTask() *Task {
	return New("t1", "model-a", 5, nil, nil, 1, time.Now())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusReady, true},
		{StatusPending, StatusRunning, false},
		{StatusReady, StatusRunning, true},
		{StatusReady, StatusSucceeded, false},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusSucceeded, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionHappyPath(t *testing.T) {
	tk := newTestTask()
	if err := tk.Transition(StatusReady); err != nil {
		t.Fatalf("Transition(Ready): %v", err)
	}
	if err := tk.Transition(StatusRunning); err != nil {
		t.Fatalf("Transition(Running): %v", err)
	}
	if tk.Status() != StatusRunning {
		t.Errorf("Status() = %v, want %v", tk.Status(), StatusRunning)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	tk := newTestTask()
	err := tk.Transition(StatusRunning)
	if err == nil {
		t.Fatal("expected error transitioning Pending -> Running directly")
	}
	if atomerr.KindOf(err) != atomerr.KindInvalidState {
		t.Errorf("KindOf() = %v, want KindInvalidState", atomerr.KindOf(err))
	}
}

func TestTransitionRejectsAfterTerminal(t *testing.T) {
	tk := newTestTask()
	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
	if err := tk.Transition(StatusRunning); err == nil {
		t.Fatal("expected error transitioning out of a terminal state")
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	tk := newTestTask()
	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
	tk.Finish(StatusFailed, nil, nil, nil, time.Now())
	if tk.Status() != StatusSucceeded {
		t.Errorf("second Finish call should not overwrite the first terminal status, got %v", tk.Status())
	}
}

func TestRequestCancel(t *testing.T) {
	tk := newTestTask()
	if !tk.RequestCancel() {
		t.Error("first RequestCancel should return true")
	}
	if tk.RequestCancel() {
		t.Error("second RequestCancel should return false (already requested)")
	}
	if !tk.CancelRequested() {
		t.Error("CancelRequested should report true after RequestCancel")
	}
}

func TestRequestCancelAfterTerminal(t *testing.T) {
	tk := newTestTask()
	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
	if tk.RequestCancel() {
		t.Error("RequestCancel on a terminal task should return false")
	}
}

func TestDoneClosesOnFinish(t *testing.T) {
	tk := newTestTask()
	done := tk.Done()

	select {
	case <-done:
		t.Fatal("Done channel should not be closed before Finish")
	default:
	}

	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done channel should close after Finish")
	}
}

func TestFinishInvokesCallback(t *testing.T) {
	tk := newTestTask()
	var got *Result
	tk.Callback = func(r *Result) { got = r }

	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
	if got == nil {
		t.Fatal("callback was not invoked")
	}
	if got.TaskID != tk.ID || got.Status != StatusSucceeded {
		t.Errorf("callback got %+v", got)
	}
}

func TestFinishSkipsCallbackOnSecondCall(t *testing.T) {
	tk := newTestTask()
	calls := 0
	tk.Callback = func(*Result) { calls++ }

	tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
	tk.Finish(StatusFailed, nil, nil, nil, time.Now())
	if calls != 1 {
		t.Errorf("callback invoked %d times, want exactly 1", calls)
	}
}

func TestFinishRecoversPanickingCallback(t *testing.T) {
	tk := newTestTask()
	tk.Callback = func(*Result) { panic("boom") }

	done := make(chan struct{})
	go func() {
		tk.Finish(StatusSucceeded, nil, nil, nil, time.Now())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Finish did not return; a panicking callback must be recovered")
	}
	if tk.Status() != StatusSucceeded {
		t.Errorf("Status() = %v, want succeeded", tk.Status())
	}
}

func TestFinishReturnsWhetherItApplied(t *testing.T) {
	tk := newTestTask()
	if !tk.Finish(StatusSucceeded, nil, nil, nil, time.Now()) {
		t.Error("first Finish should return true")
	}
	if tk.Finish(StatusFailed, nil, nil, nil, time.Now()) {
		t.Error("second Finish on an already-terminal task should return false")
	}
}

func TestDoneOnAlreadyTerminalTask(t *testing.T) {
	tk := newTestTask()
	tk.Finish(StatusFailed, nil, nil, nil, time.Now())
	select {
	case <-tk.Done():
	default:
		t.Fatal("Done() on an already-terminal task should return a closed channel")
	}
}
