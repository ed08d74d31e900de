package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/atomsched/pkg/atomerr"
	"github.com/example/atomsched/pkg/model"
)

type loadModelRequest struct {
	ID      string         `json:"id"`
	Factory string         `json:"factory"`
	Config  map[string]any `json:"config,omitempty"`
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	var req loadModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &APIError{Kind: string(atomerr.KindInvalidArgument), Message: "invalid request body: " + err.Error()})
		return
	}
	if req.ID == "" || req.Factory == "" {
		respondError(w, reqID, http.StatusBadRequest, &APIError{Kind: string(atomerr.KindInvalidArgument), Message: "id and factory are required"})
		return
	}

	meta, err := s.sched.Registry().Load(r.Context(), req.ID, req.Factory, req.Config)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, meta)
}

func (s *Server) handleUnloadModel(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.sched.Registry().Unload(id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "status": "unloaded"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.sched.Registry().List())
}

func (s *Server) handleListFactories(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, model.RegisteredFactories())
}
