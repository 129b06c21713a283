package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitrixepl/engine/internal/config"
	"github.com/bitrixepl/engine/internal/observability"
)

func testServer() *Server {
	logger := observability.NewLogger(&config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"})
	return &Server{logger: logger}
}

func TestStatusRecorderDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.Write([]byte("ok"))

	if sr.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr.status)
	}
}

func TestStatusRecorderCapturesWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusNotFound)

	if sr.status != http.StatusNotFound {
		t.Errorf("expected captured status 404, got %d", sr.status)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected underlying recorder status 404, got %d", rec.Code)
	}
}

func TestRequestLoggingMiddlewarePassesThroughStatus(t *testing.T) {
	s := testServer()
	handler := s.requestLoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync/start/deal", nil)

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201 to pass through, got %d", rec.Code)
	}
}

func TestRecoveryMiddlewareConvertsPanicTo500(t *testing.T) {
	s := testServer()
	handler := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected panic to be converted to 500, got %d", rec.Code)
	}
}

func TestRecoveryMiddlewareLetsSuccessThrough(t *testing.T) {
	s := testServer()
	handler := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}
