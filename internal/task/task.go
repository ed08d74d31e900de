// Package task defines the task record and its state machine: the unit
// of work the scheduler moves through submission, dependency resolution,
// queueing, execution, and terminal states.
package task

import (
	"sync"
	"time"

	"github.com/example/atomsched/pkg/atomerr"
	"github.com/example/atomsched/pkg/tensor"
)

// Status is a task's position in the state machine.
type Status string

const (
	StatusPending   Status = "pending"   // submitted, dependencies not yet satisfied
	StatusReady     Status = "ready"     // dependencies satisfied, waiting in the ready queue
	StatusRunning   Status = "running"   // claimed by a worker
	StatusSucceeded Status = "succeeded" // terminal
	StatusFailed    Status = "failed"    // terminal
	StatusCancelled Status = "cancelled" // terminal
)

// Terminal reports whether s is one of the three terminal statuses.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// validTransitions enumerates the legal next-states for each status.
// Cancellation can land from Pending, Ready, or Running (soft-cancel);
// nothing transitions out of a terminal state.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusReady, StatusCancelled},
	StatusReady:   {StatusRunning, StatusCancelled},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result carries a completed task's output, including a profiling
// breakdown supplemented from original_source's per-stage timing fields
// that the distilled spec dropped. The scheduler records "queue_wait"
// (submission to start of execution, which includes any time spent
// waiting on dependencies) and "infer" (model call duration).
type Result struct {
	TaskID     string
	Status     Status
	Outputs    []tensor.Tensor
	Err        error
	Profiling  map[string]time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// Task is the scheduler's unit of work. Fields below the mutex line are
// mutated only while holding mu; callers must use the accessor methods
// rather than reading fields directly from outside this package.
type Task struct {
	ID          string
	ModelID     string
	Priority    int
	DependsOn   []string
	Inputs      []tensor.Tensor
	Metadata    map[string]string
	SubmittedAt time.Time
	seq         uint64 // monotonic submission sequence, used for FIFO tie-break

	// Callback, if set, is invoked exactly once with the task's Result
	// when it reaches a terminal state. A panicking callback is
	// recovered so it can never crash the worker running the task.
	Callback func(*Result)

	mu        sync.Mutex
	status    Status
	result    *Result
	cancelled bool
	waiters   []chan struct{}
}

// New constructs a Task in StatusPending.
func New(id, modelID string, priority int, dependsOn []string, inputs []tensor.Tensor, seq uint64, submittedAt time.Time) *Task {
	deps := make([]string, len(dependsOn))
	copy(deps, dependsOn)
	return &Task{
		ID:          id,
		ModelID:     modelID,
		Priority:    priority,
		DependsOn:   deps,
		Inputs:      inputs,
		Metadata:    map[string]string{},
		SubmittedAt: submittedAt,
		seq:         seq,
		status:      StatusPending,
	}
}

// Seq returns the monotonic submission sequence used to break priority
// ties in FIFO order.
func (t *Task) Seq() uint64 { return t.seq }

// Status returns the task's current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the task's result, if it has reached a terminal state.
func (t *Task) Result() (*Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return nil, false
	}
	r := *t.result
	return &r, true
}

// Transition moves the task to 'to', rejecting illegal transitions. It is
// a no-op error if the task is already terminal.
func (t *Task) Transition(to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return atomerr.New(atomerr.KindInvalidState, "task.Transition", "task "+t.ID+" is already terminal ("+string(t.status)+")")
	}
	if !CanTransition(t.status, to) {
		return atomerr.New(atomerr.KindInvalidState, "task.Transition", "illegal transition "+string(t.status)+" -> "+string(to)+" for task "+t.ID)
	}
	t.status = to
	return nil
}

// Finish transitions the task into a terminal state, records its result,
// wakes any goroutines blocked in Wait, and then invokes the callback (if
// any) — wait handles are fulfilled before the callback runs. It is a
// no-op returning false if the task was already terminal, so a caller
// racing with another finisher (e.g. a forced shutdown racing the task's
// own completion) can tell whether its call applied.
func (t *Task) Finish(status Status, outputs []tensor.Tensor, err error, profiling map[string]time.Duration, started time.Time) bool {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.status = status
	t.result = &Result{
		TaskID:     t.ID,
		Status:     status,
		Outputs:    outputs,
		Err:        err,
		Profiling:  profiling,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	result := t.result
	callback := t.Callback
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	if callback != nil {
		invokeCallback(callback, result)
	}
	return true
}

// invokeCallback runs a task's terminal callback, recovering from any
// panic so a caller-supplied callback can never take down a worker
// goroutine.
func invokeCallback(cb func(*Result), result *Result) {
	defer func() {
		recover()
	}()
	cb(result)
}

// RequestCancel marks the task for cooperative cancellation. It returns
// true if the request changed anything observable (i.e. the task was not
// already terminal or cancelled).
func (t *Task) RequestCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

// CancelRequested reports whether RequestCancel has been called on this
// task. Workers poll this between execution stages to cooperatively abort.
func (t *Task) CancelRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// waitChan returns a channel that is closed once the task reaches a
// terminal state (already closed if it is terminal now) — the wait handle
// analog described in SPEC_FULL.md (a channel-based stand-in for the
// original's std::promise<TaskResult>). It does not block.
func (t *Task) waitChan() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	return ch
}

// Done returns a channel that closes when the task reaches a terminal
// state.
func (t *Task) Done() <-chan struct{} {
	return t.waitChan()
}
