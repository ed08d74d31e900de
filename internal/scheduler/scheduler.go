// Package scheduler ties the dependency graph, ready queue, worker pool,
// and model registry together into the orchestrator that accepts task
// submissions and drives them to completion. Its lifecycle shape
// (Start/Stop over a stop channel) is grounded on the teacher's deleted
// poll-loop scheduler; its dispatch model is event-driven rather than
// poll-driven, per SPEC_FULL.md §4.5.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/atomsched/internal/graph"
	"github.com/example/atomsched/internal/queue"
	"github.com/example/atomsched/internal/registry"
	"github.com/example/atomsched/internal/stats"
	"github.com/example/atomsched/internal/task"
	"github.com/example/atomsched/internal/workerpool"
	"github.com/example/atomsched/pkg/atomerr"
	"github.com/example/atomsched/pkg/tensor"
)

// Config holds the scheduler's tunables, grounded on the teacher's
// scheduler Config/DefaultConfig() naming convention.
type Config struct {
	NumWorkers    int
	QueueCapacity int
	TaskTimeout   time.Duration
	Retention     time.Duration
	ReapInterval  time.Duration

	// StopGracePeriod bounds how long Stop waits for in-flight Running
	// tasks before giving up on them; any task still running once it
	// elapses is forced to Failed with KindTimeout.
	StopGracePeriod time.Duration
}

// DefaultConfig returns sensible defaults for local/dev use.
func DefaultConfig() Config {
	return Config{
		NumWorkers:      4,
		QueueCapacity:   1024,
		TaskTimeout:     30 * time.Second,
		Retention:       5 * time.Minute,
		ReapInterval:    time.Minute,
		StopGracePeriod: 5 * time.Second,
	}
}

// SubmitRequest describes a single task submission.
type SubmitRequest struct {
	ID        string // optional; generated if empty
	ModelID   string
	Priority  int
	DependsOn []string
	Inputs    []tensor.Tensor
	Metadata  map[string]string

	// Callback, if set, is invoked once with the task's terminal Result.
	// See task.Task.Callback for panic-safety guarantees.
	Callback func(*task.Result)
}

// Scheduler is the orchestrator described above. It is safe for
// concurrent use.
type Scheduler struct {
	cfg      Config
	logger   *slog.Logger
	graph    *graph.Graph
	queue    *queue.Queue
	registry *registry.Registry
	stats    *stats.Stats

	pool *workerpool.Pool

	tasksMu sync.RWMutex
	tasks   map[string]*task.Task

	seq atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
	cancel context.CancelFunc
}

// New constructs a Scheduler. Call Start before submitting work.
func New(cfg Config, reg *registry.Registry, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		logger:   logger.With("component", "scheduler"),
		graph:    graph.New(),
		queue:    queue.New(cfg.QueueCapacity),
		registry: reg,
		stats:    stats.New(),
		tasks:    map[string]*task.Task{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker pool and the dispatch loop that moves ready
// tasks from the queue into workers.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pool = workerpool.New(runCtx, s.cfg.NumWorkers, s.cfg.QueueCapacity)

	go s.dispatchLoop(runCtx)
	go s.reapLoop(runCtx)
	return nil
}

// Stop first cancels every Pending/Ready task with KindSchedulerStopped,
// then halts dispatch and closes the ready queue, and terminates bounded
// in time: it waits up to cfg.StopGracePeriod for the worker pool to drain
// in-flight work, and finalizes every task still non-terminal afterward —
// any task still Running once the grace period elapses is failed with
// KindTimeout. It blocks until the dispatch loop has exited.
func (s *Scheduler) Stop() error {
	close(s.stopCh)
	s.finalizeOnStop(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Close()

	drained := make(chan struct{})
	if s.pool != nil {
		go func() {
			s.pool.Stop()
			close(drained)
		}()
	} else {
		close(drained)
	}

	grace := s.cfg.StopGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-drained:
	case <-time.After(grace):
	}

	s.finalizeOnStop(true)

	<-s.doneCh
	return nil
}

// finalizeOnStop terminates tasks left in a non-terminal state, so nothing
// blocked in Wait/WaitAll can hang past Stop's grace period. Pending/Ready
// tasks are cancelled with KindSchedulerStopped without finish's cascade,
// so none of them is relabelled KindDependencyFailed by a dependency's
// shutdown. Running tasks are failed with KindTimeout only when
// includeRunning is set.
func (s *Scheduler) finalizeOnStop(includeRunning bool) {
	s.tasksMu.RLock()
	pending := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		pending = append(pending, t)
	}
	s.tasksMu.RUnlock()

	for _, t := range pending {
		switch t.Status() {
		case task.StatusPending, task.StatusReady:
			if t.Finish(task.StatusCancelled, nil, atomerr.New(atomerr.KindSchedulerStopped, "scheduler.Stop", "task "+t.ID+" cancelled: scheduler stopped"), nil, time.Now()) {
				s.stats.RecordCompletion(string(task.StatusCancelled), 0)
				s.queue.Remove(t.ID)
				s.graph.MarkTerminal(t.ID)
			}
		case task.StatusRunning:
			if includeRunning {
				s.finish(t, task.StatusFailed, nil, atomerr.New(atomerr.KindTimeout, "scheduler.Stop", "task "+t.ID+" did not finish within the stop grace period"), nil, time.Now())
			}
		}
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer close(s.doneCh)
	for {
		item, err := s.queue.Pop(ctx)
		if err != nil {
			return
		}
		t := s.lookupTask(item.TaskID)
		if t == nil {
			continue
		}
		if err := t.Transition(task.StatusRunning); err != nil {
			continue
		}
		tt := t
		if !s.pool.Submit(func(jobCtx context.Context) { s.runTask(jobCtx, tt) }) {
			return
		}
	}
}

// validateDependencies rejects a submission that names a dependency id
// unknown to the scheduler, per the requirement that Submit fail
// synchronously rather than leave the task stuck in Pending forever.
func (s *Scheduler) validateDependencies(deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	for _, d := range deps {
		if _, ok := s.tasks[d]; !ok {
			return atomerr.New(atomerr.KindInvalidArgument, "scheduler.Submit", "dependency "+d+" is not a known task")
		}
	}
	return nil
}

// validateInputsForModel checks inputs against modelID's declared
// shape/dtype contract. An unloaded model is not treated as a validation
// failure here — that surfaces asynchronously once the task runs, as it
// always has — only a genuine shape/dtype mismatch against a model that
// is loaded fails Submit synchronously.
func (s *Scheduler) validateInputsForModel(modelID string, inputs []tensor.Tensor) error {
	err := s.registry.ValidateInputs(modelID, inputs)
	if err != nil && atomerr.KindOf(err) == atomerr.KindModelNotFound {
		return nil
	}
	return err
}

// Submit enqueues a single task. If it has no outstanding dependencies
// it is pushed straight onto the ready queue; otherwise it waits for its
// dependencies to finish. Submit fails synchronously, with no task id
// allocated, if a dependency id is unknown or the inputs do not match
// the model's declared shape/dtype contract.
//
// A caller-supplied req.ID is reserved for opt-in correlation (e.g. a
// batch referencing a sibling request by name); when left empty, Submit
// allocates the task id itself from s.seq, the same monotonic counter
// that orders same-priority tasks FIFO, so default ids stay
// monotonically increasing, unique, and non-zero as task ids rather than
// random strings.
func (s *Scheduler) Submit(req SubmitRequest) (string, error) {
	if err := s.validateDependencies(req.DependsOn); err != nil {
		return "", err
	}
	if err := s.validateInputsForModel(req.ModelID, req.Inputs); err != nil {
		return "", err
	}

	seq := s.seq.Add(1)
	id := req.ID
	if id == "" {
		id = strconv.FormatUint(seq, 10)
	}

	s.tasksMu.Lock()
	if _, exists := s.tasks[id]; exists {
		s.tasksMu.Unlock()
		return "", atomerr.New(atomerr.KindAlreadyExists, "scheduler.Submit", "task "+id+" already submitted")
	}
	t := task.New(id, req.ModelID, req.Priority, req.DependsOn, req.Inputs, seq, time.Now())
	for k, v := range req.Metadata {
		t.Metadata[k] = v
	}
	t.Callback = req.Callback
	s.tasks[id] = t
	s.tasksMu.Unlock()

	if err := s.graph.Insert(id, req.DependsOn); err != nil {
		s.tasksMu.Lock()
		delete(s.tasks, id)
		s.tasksMu.Unlock()
		return "", err
	}

	s.stats.RecordSubmitted()

	if !s.graph.HasDependencies(id) {
		if err := s.makeReady(t); err != nil {
			return "", err
		}
	}
	return id, nil
}

// SubmitBatch admits every request atomically: either all of them pass
// validation and are inserted into the task table and dependency graph,
// or none are, and every returned error is the same failure. Dependency
// ids may reference other requests within the same batch, not just
// already-submitted tasks. Only after the whole batch is admitted are
// ready-eligible tasks pushed onto the queue.
//
// Each request's default id (when req.ID is empty) is allocated from
// s.seq, the same monotonic counter Submit uses, so a batch of
// auto-numbered tasks gets the same monotonically increasing, unique,
// non-zero ids a single Submit call would. batchID is a uuid minted
// once per call purely for correlating this batch's log lines; it is
// never used as a task id.
func (s *Scheduler) SubmitBatch(reqs []SubmitRequest) ([]string, []error) {
	batchID := uuid.NewString()

	fail := func(err error) ([]string, []error) {
		errs := make([]error, len(reqs))
		for i := range errs {
			errs[i] = err
		}
		return make([]string, len(reqs)), errs
	}

	ids := make([]string, len(reqs))
	seqs := make([]uint64, len(reqs))
	seen := map[string]bool{}
	for i, req := range reqs {
		seq := s.seq.Add(1)
		seqs[i] = seq
		id := req.ID
		if id == "" {
			id = strconv.FormatUint(seq, 10)
		}
		if seen[id] {
			return fail(atomerr.New(atomerr.KindAlreadyExists, "scheduler.SubmitBatch", "duplicate task id "+id+" within batch"))
		}
		seen[id] = true
		ids[i] = id
	}

	for _, req := range reqs {
		if err := s.validateInputsForModel(req.ModelID, req.Inputs); err != nil {
			return fail(err)
		}
	}

	s.tasksMu.Lock()
	for i, id := range ids {
		if _, exists := s.tasks[id]; exists {
			s.tasksMu.Unlock()
			return fail(atomerr.New(atomerr.KindAlreadyExists, "scheduler.SubmitBatch", "task "+id+" already submitted"))
		}
		for _, d := range reqs[i].DependsOn {
			if seen[d] {
				continue
			}
			if _, ok := s.tasks[d]; !ok {
				s.tasksMu.Unlock()
				return fail(atomerr.New(atomerr.KindInvalidArgument, "scheduler.SubmitBatch", "dependency "+d+" is not a known task"))
			}
		}
	}

	tasks := make([]*task.Task, len(reqs))
	for i, req := range reqs {
		t := task.New(ids[i], req.ModelID, req.Priority, req.DependsOn, req.Inputs, seqs[i], time.Now())
		for k, v := range req.Metadata {
			t.Metadata[k] = v
		}
		t.Callback = req.Callback
		s.tasks[ids[i]] = t
		tasks[i] = t
	}
	s.tasksMu.Unlock()

	for i, t := range tasks {
		if err := s.graph.Insert(t.ID, reqs[i].DependsOn); err != nil {
			s.rollbackBatch(tasks[:i+1])
			return fail(err)
		}
	}

	s.logger.Info("batch admitted", "batch_id", batchID, "count", len(tasks))
	errs := make([]error, len(reqs))
	for _, t := range tasks {
		s.stats.RecordSubmitted()
		if !s.graph.HasDependencies(t.ID) {
			if err := s.makeReady(t); err != nil {
				s.logger.Warn("failed to ready admitted batch task", "batch_id", batchID, "task_id", t.ID, "error", err)
			}
		}
	}
	return ids, errs
}

// rollbackBatch undoes SubmitBatch's graph/table admission for tasks that
// were already inserted before a later request in the same batch failed.
func (s *Scheduler) rollbackBatch(tasks []*task.Task) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	for _, t := range tasks {
		s.graph.Remove(t.ID)
		delete(s.tasks, t.ID)
	}
}

func (s *Scheduler) makeReady(t *task.Task) error {
	if err := t.Transition(task.StatusReady); err != nil {
		return err
	}
	return s.queue.Push(queue.Item{TaskID: t.ID, Priority: t.Priority, Seq: t.Seq()})
}

func (s *Scheduler) runTask(ctx context.Context, t *task.Task) {
	started := time.Now()
	profiling := map[string]time.Duration{
		"queue_wait": started.Sub(t.SubmittedAt),
	}

	if t.CancelRequested() {
		s.finish(t, task.StatusCancelled, nil, atomerr.New(atomerr.KindCancelled, "scheduler.runTask", "task "+t.ID+" cancelled before execution"), profiling, started)
		return
	}

	m, err := s.registry.Acquire(t.ModelID)
	if err != nil {
		s.finish(t, task.StatusFailed, nil, err, profiling, started)
		return
	}
	defer s.registry.Release(t.ModelID)

	inferCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.TaskTimeout > 0 {
		inferCtx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()
	}

	inferStart := time.Now()
	outputs, err := func() (out []tensor.Tensor, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("model panicked: %v", r)
			}
		}()
		return m.Infer(inferCtx, t.Inputs)
	}()
	profiling["infer"] = time.Since(inferStart)

	status := task.StatusSucceeded
	finishErr := err
	switch {
	case t.CancelRequested():
		status = task.StatusCancelled
		finishErr = atomerr.New(atomerr.KindCancelled, "scheduler.runTask", "task "+t.ID+" cancelled during execution")
	case err != nil:
		status = task.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			finishErr = atomerr.Wrap(atomerr.KindTimeout, "scheduler.runTask", "model "+t.ModelID+" inference timed out", err)
		} else {
			finishErr = atomerr.Wrap(atomerr.KindBackendError, "scheduler.runTask", "model "+t.ModelID+" inference failed", err)
		}
	}
	s.finish(t, status, outputs, finishErr, profiling, started)
}

// finish applies a task's terminal transition and its downstream
// bookkeeping. It is a no-op if the task was already terminal (e.g. a
// shutdown-forced finalization raced the task's own completion), so
// stats and cascade effects are never double-applied.
func (s *Scheduler) finish(t *task.Task, status task.Status, outputs []tensor.Tensor, err error, profiling map[string]time.Duration, started time.Time) {
	if !t.Finish(status, outputs, err, profiling, started) {
		return
	}

	outcome := string(status)
	s.stats.RecordCompletion(outcome, profiling["infer"])

	readied := s.graph.MarkTerminal(t.ID)
	if status != task.StatusSucceeded {
		s.cascadeFailure(t.ID)
	} else {
		for _, id := range readied {
			if !s.graph.HasDependencies(id) {
				if dep := s.lookupTask(id); dep != nil {
					if merr := s.makeReady(dep); merr != nil {
						s.logger.Warn("failed to ready dependent task", "task_id", id, "error", merr)
					}
				}
			}
		}
	}
}

// cascadeFailure transitively cancels every dependent of a failed or
// cancelled task, since their inputs can never become available. Their
// result carries KindDependencyFailed rather than KindCancelled, so a
// caller can distinguish "cancelled because you asked" from "cancelled
// because a dependency died".
func (s *Scheduler) cascadeFailure(id string) {
	for _, depID := range s.graph.Dependents(id) {
		dep := s.lookupTask(depID)
		if dep == nil {
			continue
		}
		if !dep.RequestCancel() {
			continue
		}
		applied := dep.Finish(task.StatusCancelled, nil, atomerr.New(atomerr.KindDependencyFailed, "scheduler.cascadeFailure", "dependency of task "+depID+" failed or was cancelled"), nil, time.Now())
		if !applied {
			continue
		}
		s.stats.RecordCompletion(string(task.StatusCancelled), 0)
		s.queue.Remove(depID)
		s.graph.MarkTerminal(depID)
		s.cascadeFailure(depID)
	}
}

// Cancel requests cooperative cancellation of id. A task still pending or
// waiting in the ready queue is finished immediately; a running task's
// cancellation flag is set for the worker to observe instead, since its
// model call may already be in flight.
func (s *Scheduler) Cancel(id string) error {
	t := s.lookupTask(id)
	if t == nil {
		return atomerr.New(atomerr.KindNotFound, "scheduler.Cancel", "task "+id+" not found")
	}
	if !t.RequestCancel() {
		return atomerr.New(atomerr.KindInvalidState, "scheduler.Cancel", "task "+id+" is already terminal")
	}
	s.queue.Remove(id)
	if t.Status() != task.StatusRunning {
		s.finish(t, task.StatusCancelled, nil, atomerr.New(atomerr.KindCancelled, "scheduler.Cancel", "task "+id+" cancelled before execution"), nil, time.Now())
	}
	return nil
}

// Status returns a task's current status and, if terminal, its result.
func (s *Scheduler) Status(id string) (task.Status, *task.Result, error) {
	t := s.lookupTask(id)
	if t == nil {
		return "", nil, atomerr.New(atomerr.KindNotFound, "scheduler.Status", "task "+id+" not found")
	}
	result, _ := t.Result()
	return t.Status(), result, nil
}

// Wait blocks until id reaches a terminal state, ctx is done, or the
// task cannot be found.
func (s *Scheduler) Wait(ctx context.Context, id string) (*task.Result, error) {
	t := s.lookupTask(id)
	if t == nil {
		return nil, atomerr.New(atomerr.KindNotFound, "scheduler.Wait", "task "+id+" not found")
	}
	select {
	case <-t.Done():
		result, _ := t.Result()
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAll blocks until every id reaches a terminal state or ctx is done.
// A wait that times out produces a per-task Result carrying KindTimeout
// instead of aborting the whole call, so the returned slice stays
// aligned with ids even when only some of the tasks finished before the
// deadline. A not-found id still aborts the call immediately, since
// that is a caller mistake rather than a timing race.
func (s *Scheduler) WaitAll(ctx context.Context, ids []string) ([]*task.Result, error) {
	results := make([]*task.Result, len(ids))
	for i, id := range ids {
		t := s.lookupTask(id)
		if t == nil {
			return results, atomerr.New(atomerr.KindNotFound, "scheduler.WaitAll", "task "+id+" not found")
		}

		// Check for an already-terminal task without involving ctx, so a
		// task that finished in the same instant ctx expired is still
		// reported as its real result rather than a synthetic timeout.
		select {
		case <-t.Done():
			result, _ := t.Result()
			results[i] = result
			continue
		default:
		}

		select {
		case <-t.Done():
			result, _ := t.Result()
			results[i] = result
		case <-ctx.Done():
			results[i] = &task.Result{
				TaskID: id,
				Err:    atomerr.New(atomerr.KindTimeout, "scheduler.WaitAll", "task "+id+" did not complete before the wait deadline"),
			}
		}
	}
	return results, nil
}

// Stats returns a snapshot of the scheduler's running counters.
func (s *Scheduler) Stats() stats.Snapshot {
	return s.stats.Snapshot()
}

// Registry exposes the underlying model registry for server/CLI handlers
// that need to load/unload/list models directly.
func (s *Scheduler) Registry() *registry.Registry {
	return s.registry
}

func (s *Scheduler) lookupTask(id string) *task.Task {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	return s.tasks[id]
}

// reapLoop periodically drops terminal tasks older than cfg.Retention
// from both the task table and the dependency graph, bounding memory use
// for long-running servers under steady submission load.
func (s *Scheduler) reapLoop(ctx context.Context) {
	if s.cfg.ReapInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

func (s *Scheduler) reapOnce() {
	cutoff := time.Now().Add(-s.cfg.Retention)

	s.tasksMu.Lock()
	var toRemove []string
	for id, t := range s.tasks {
		result, ok := t.Result()
		if ok && result.FinishedAt.Before(cutoff) {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(s.tasks, id)
	}
	s.tasksMu.Unlock()

	for _, id := range toRemove {
		s.graph.Remove(id)
	}
	if len(toRemove) > 0 {
		s.logger.Debug("reaped terminal tasks", "count", len(toRemove))
	}
}
