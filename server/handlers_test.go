package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"videoJudge/storage"
)

func newTestHandlers(t *testing.T) *AnalyzeHandlers {
	t.Helper()
	return NewAnalyzeHandlers(storage.NewMemoryVectorStore(), t.TempDir())
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchHandlerRejectsBadK(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, httptest.NewRequest(http.MethodGet, "/search?q=demo&k=zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, httptest.NewRequest(http.MethodPost, "/search?q=demo", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAnalyzeHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.AnalyzeHandler(rec, httptest.NewRequest(http.MethodGet, "/analyze", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAnalyzeHandlerRejectsEmptyBody(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	h.AnalyzeHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeHandlerRejectsUnsupportedExtension(t *testing.T) {
	h := newTestHandlers(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"video_path":"notes.txt"}`))
	req.Header.Set("Content-Type", "application/json")
	h.AnalyzeHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "unsupported file type") {
		t.Errorf("error = %q, want unsupported file type", body["error"])
	}
}
