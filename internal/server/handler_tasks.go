package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/atomsched/internal/scheduler"
	"github.com/example/atomsched/internal/store"
	"github.com/example/atomsched/internal/task"
	"github.com/example/atomsched/pkg/atomerr"
	"github.com/example/atomsched/pkg/tensor"
)

// taskSubmission is the JSON body for POST /tasks.
type taskSubmission struct {
	ID        string            `json:"id,omitempty"`
	ModelID   string            `json:"model_id"`
	Priority  int               `json:"priority"`
	DependsOn []string          `json:"depends_on,omitempty"`
	Inputs    []tensor.Tensor   `json:"inputs"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Server) submitOne(ctx context.Context, sub taskSubmission) (string, error) {
	if sub.ModelID == "" {
		return "", atomerr.New(atomerr.KindInvalidArgument, "server.submitOne", "model_id is required")
	}
	id, err := s.sched.Submit(scheduler.SubmitRequest{
		ID:        sub.ID,
		ModelID:   sub.ModelID,
		Priority:  sub.Priority,
		DependsOn: sub.DependsOn,
		Inputs:    sub.Inputs,
		Metadata:  sub.Metadata,
	})
	if err != nil {
		return "", err
	}
	if s.audit != nil {
		if err := s.audit.RecordSubmission(ctx, store.SubmissionRecord{
			TaskID:      id,
			ModelID:     sub.ModelID,
			Priority:    sub.Priority,
			Status:      string(task.StatusPending),
			SubmittedAt: time.Now(),
		}); err != nil {
			s.logger.Warn("audit record failed", "task_id", id, "error", err)
		}
	}
	return id, nil
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var sub taskSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &APIError{Kind: string(atomerr.KindInvalidArgument), Message: "invalid request body: " + err.Error()})
		return
	}
	id, err := s.submitOne(r.Context(), sub)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, map[string]string{"id": id, "status": string(task.StatusPending)})
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var subs []taskSubmission
	if err := json.NewDecoder(r.Body).Decode(&subs); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &APIError{Kind: string(atomerr.KindInvalidArgument), Message: "invalid request body: " + err.Error()})
		return
	}

	reqs := make([]scheduler.SubmitRequest, len(subs))
	for i, sub := range subs {
		reqs[i] = scheduler.SubmitRequest{
			ID:        sub.ID,
			ModelID:   sub.ModelID,
			Priority:  sub.Priority,
			DependsOn: sub.DependsOn,
			Inputs:    sub.Inputs,
			Metadata:  sub.Metadata,
		}
	}
	ids, errs := s.sched.SubmitBatch(reqs)

	type result struct {
		ID    string `json:"id,omitempty"`
		Error string `json:"error,omitempty"`
	}
	out := make([]result, len(subs))
	for i, err := range errs {
		if err != nil {
			out[i] = result{Error: err.Error()}
			continue
		}
		out[i] = result{ID: ids[i]}
		if s.audit != nil {
			if auditErr := s.audit.RecordSubmission(r.Context(), store.SubmissionRecord{
				TaskID:      ids[i],
				ModelID:     subs[i].ModelID,
				Priority:    subs[i].Priority,
				Status:      string(task.StatusPending),
				SubmittedAt: time.Now(),
			}); auditErr != nil {
				s.logger.Warn("audit record failed", "task_id", ids[i], "error", auditErr)
			}
		}
	}
	respondCreated(w, reqID, out)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	status, result, err := s.sched.Status(id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	resp := map[string]any{"id": id, "status": status}
	if result != nil {
		resp["started_at"] = result.StartedAt
		resp["finished_at"] = result.FinishedAt
		resp["outputs"] = result.Outputs
		resp["profiling"] = result.Profiling
		if result.Err != nil {
			resp["error"] = result.Err.Error()
		}
	}
	respondOK(w, reqID, resp)
}

func (s *Server) handleWaitTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	ctx := r.Context()
	if d := r.URL.Query().Get("timeout"); d != "" {
		if dur, err := time.ParseDuration(d); err == nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, dur)
			defer cancel()
		}
	}

	result, err := s.sched.Wait(ctx, id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	resp := map[string]any{
		"id":          id,
		"status":      result.Status,
		"started_at":  result.StartedAt,
		"finished_at": result.FinishedAt,
		"outputs":     result.Outputs,
		"profiling":   result.Profiling,
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	respondOK(w, reqID, resp)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.sched.Cancel(id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "status": string(task.StatusCancelled)})
}
