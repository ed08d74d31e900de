package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/atomsched/internal/config"
	"github.com/example/atomsched/internal/registry"
	"github.com/example/atomsched/internal/scheduler"
	_ "github.com/example/atomsched/pkg/model/cpubackend"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New()
	if _, err := reg.Load(context.Background(), "identity", "cpu", map[string]any{"op": "identity"}); err != nil {
		t.Fatalf("load model: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(scheduler.DefaultConfig(), reg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("sched.Start: %v", err)
	}
	t.Cleanup(func() { sched.Stop() })

	return New(config.DefaultServerConfig(), sched, logger)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSubmitAndGetTask(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"model_id": "identity",
		"inputs": []map[string]any{
			{"name": "x", "shape": []int{2}, "dtype": "float64", "data": []float64{1, 2}},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	data := resp.Data.(map[string]any)
	id := data["id"].(string)

	waitReq := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+id+"/wait?timeout=2s", nil)
	waitRec := httptest.NewRecorder()
	s.ServeHTTP(waitRec, waitReq)

	if waitRec.Code != http.StatusOK {
		t.Fatalf("wait status = %d, want 200, body: %s", waitRec.Code, waitRec.Body.String())
	}
}

func TestSubmitMissingModelIDFails(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"inputs": []map[string]any{}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetUnknownTaskReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLoadAndListModels(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"id": "scaler", "factory": "cpu", "config": map[string]any{"op": "scale", "scale": 2.0}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("load status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/models/", nil)
	listRec := httptest.NewRecorder()
	s.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listRec.Code)
	}

	var resp Response
	json.Unmarshal(listRec.Body.Bytes(), &resp)
	models := resp.Data.([]any)
	if len(models) != 2 { // identity + scaler
		t.Errorf("got %d models, want 2", len(models))
	}
}

func TestFactoriesEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/factories", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
