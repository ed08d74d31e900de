package server

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Stats()
	respondOK(w, RequestIDFromContext(r.Context()), map[string]any{
		"submitted":       snap.Submitted,
		"succeeded":       snap.Succeeded,
		"failed":          snap.Failed,
		"cancelled":       snap.Cancelled,
		"average_latency": snap.AverageLatency.String(),
		"total_memory":    s.sched.Registry().TotalMemory(),
	})
}
