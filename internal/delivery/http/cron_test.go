package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestCronHandler_UnknownJob(t *testing.T) {
	handler := NewCronHandler(nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/cron?job=unknown", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCronHandler_MissingJobParameter(t *testing.T) {
	handler := NewCronHandler(nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCronHandler_MethodNotAllowed(t *testing.T) {
	handler := NewCronHandler(nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/cron?job=account_check", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}
