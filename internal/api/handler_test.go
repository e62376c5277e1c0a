//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/askvoice/internal/backend"
	"github.com/ashureev/askvoice/internal/config"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorCarriesRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, http.StatusTeapot, "short and stout")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(chiMiddleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Fatalf("Expected 418, got %d", w.Code)
	}
	var body backend.ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if body.Detail != "short and stout" {
		t.Errorf("Unexpected detail %q", body.Detail)
	}
	if body.RequestID != "abc-123" {
		t.Errorf("Expected request id abc-123, got %q", body.RequestID)
	}
}

func TestNewHandlerDefaults(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	if h.maxBodySize != defaultMaxRequestBodySize {
		t.Errorf("Expected default body size, got %d", h.maxBodySize)
	}
	if h.readyTimeout != defaultReadyTimeout {
		t.Errorf("Expected default ready timeout, got %v", h.readyTimeout)
	}
	if h.backendCfg == nil {
		t.Fatal("Expected ReadBackend as default backend config")
	}

	h = NewHandler(nil, nil, &config.Config{MaxRequestBodySize: 64}, nil)
	if h.maxBodySize != 64 {
		t.Errorf("Expected body size from config, got %d", h.maxBodySize)
	}
}
