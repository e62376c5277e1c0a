package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/askvoice/internal/backend"
	"github.com/ashureev/askvoice/internal/config"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// fakeBackend is an httptest server standing in for the answering service.
type fakeBackend struct {
	srv    *httptest.Server
	calls  atomic.Int32
	keys   chan string
	status int
	body   string
}

func newFakeBackend(t *testing.T, status int, body string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{keys: make(chan string, 16), status: status, body: body}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		if r.URL.Path != "/query" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if key, ok := r.Header[http.CanonicalHeaderKey(backend.APIKeyHeader)]; ok {
			fb.keys <- key[0]
		} else {
			fb.keys <- "<none>"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fb.status)
		_, _ = io.WriteString(w, fb.body)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	h.RegisterRoutes(r)
	return r
}

func staticBackend(url, key string) config.BackendFunc {
	return func() config.Backend { return config.Backend{BaseURL: url, APIKey: key} }
}

func postAsk(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, backend.ErrorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var errBody backend.ErrorBody
	if w.Code != http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &errBody); err != nil {
			t.Fatalf("Failed to decode error body %q: %v", w.Body.String(), err)
		}
	}
	return w, errBody
}

func TestAskRelaysBackendAnswerVerbatim(t *testing.T) {
	const answer = `{"answer":"Dr. Asha Menon is in cabin A-201.","route":"structured","sources":[{"id":"f1","text":"{}","metadata":{"source":"structured"}}]}`
	fb := newFakeBackend(t, http.StatusOK, answer)
	h := NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, "secret"), nil, nil)

	w, _ := postAsk(t, newTestRouter(h), `{"question":"  Where is Dr. Menon?  "}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != answer {
		t.Errorf("Expected verbatim relay, got %s", w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
		t.Errorf("Expected no-cache response, got %q", got)
	}
	if fb.calls.Load() != 1 {
		t.Errorf("Expected exactly one backend call, got %d", fb.calls.Load())
	}
	if key := <-fb.keys; key != "secret" {
		t.Errorf("Expected X-API-Key secret, got %q", key)
	}
}

func TestAskOmitsAPIKeyWhenUnset(t *testing.T) {
	fb := newFakeBackend(t, http.StatusOK, `{"answer":"a","route":"rag"}`)
	h := NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, ""), nil, nil)

	w, _ := postAsk(t, newTestRouter(h), `{"question":"who teaches ML?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if key := <-fb.keys; key != "<none>" {
		t.Errorf("Expected no X-API-Key header, got %q", key)
	}
}

func TestAskRejectsEmptyQuestionWithoutBackendCall(t *testing.T) {
	fb := newFakeBackend(t, http.StatusOK, `{"answer":"a","route":"rag"}`)
	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, ""), nil, nil))

	for _, body := range []string{`{"question":""}`, `{"question":"   \n\t"}`, `{}`} {
		w, errBody := postAsk(t, router, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
		if errBody.Detail != DetailQuestionRequired {
			t.Errorf("%s: expected %q, got %q", body, DetailQuestionRequired, errBody.Detail)
		}
		if errBody.RequestID == "" {
			t.Errorf("%s: expected request id in error body", body)
		}
	}
	if fb.calls.Load() != 0 {
		t.Fatalf("Expected no backend calls, got %d", fb.calls.Load())
	}
}

func TestAskRelaysBackendFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "detail relayed",
			status:     http.StatusBadRequest,
			body:       `{"detail":"Question exceeds max length of 400 characters.","request_id":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Question exceeds max length of 400 characters.",
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Unauthorized"}`,
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Unauthorized",
		},
		{
			name:       "structured detail falls back",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"msg":"too short"}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: DetailBackendFailed,
		},
		{
			name:       "html error page falls back",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantStatus: http.StatusBadGateway,
			wantDetail: DetailBackendFailed,
		},
		{
			name:       "unparsable success",
			status:     http.StatusOK,
			body:       `{"answer": "trunc`,
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailInvalidResponse,
		},
		{
			name:       "empty success",
			status:     http.StatusOK,
			body:       ``,
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t, tt.status, tt.body)
			router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, ""), nil, nil))

			w, errBody := postAsk(t, router, `{"question":"hello department"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, w.Code)
			}
			if errBody.Detail != tt.wantDetail {
				t.Errorf("Expected detail %q, got %q", tt.wantDetail, errBody.Detail)
			}
			if fb.calls.Load() != 1 {
				t.Errorf("Expected one backend call (no retries), got %d", fb.calls.Load())
			}
		})
	}
}

func TestAskMalformedBodyIsInternalError(t *testing.T) {
	fb := newFakeBackend(t, http.StatusOK, `{}`)
	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, ""), nil, nil))

	for _, body := range []string{`not json`, `{"question": 42}`, ``} {
		w, errBody := postAsk(t, router, body)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%q: expected 500, got %d", body, w.Code)
		}
		if errBody.Detail != DetailInternal {
			t.Errorf("%q: expected %q, got %q", body, DetailInternal, errBody.Detail)
		}
	}
	if fb.calls.Load() != 0 {
		t.Fatalf("Expected no backend calls, got %d", fb.calls.Load())
	}
}

func TestAskBodyTooLarge(t *testing.T) {
	fb := newFakeBackend(t, http.StatusOK, `{}`)
	cfg := &config.Config{MaxRequestBodySize: 32}
	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(fb.srv.URL, ""), cfg, nil))

	w, errBody := postAsk(t, router, `{"question":"`+strings.Repeat("a", 100)+`"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", w.Code)
	}
	if errBody.Detail != DetailBodyTooLarge {
		t.Errorf("Unexpected detail %q", errBody.Detail)
	}
}

func TestAskUnreachableBackendIsInternalError(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(url, ""), nil, nil))
	w, errBody := postAsk(t, router, `{"question":"anyone there?"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if errBody.Detail != DetailInternal {
		t.Errorf("Unexpected detail %q", errBody.Detail)
	}
}

func TestAskReadsBackendConfigPerRequest(t *testing.T) {
	first := newFakeBackend(t, http.StatusOK, `{"answer":"first","route":"rag"}`)
	second := newFakeBackend(t, http.StatusOK, `{"answer":"second","route":"rag"}`)

	t.Setenv("BACKEND_BASE_URL", first.srv.URL)
	t.Setenv("BACKEND_API_KEY", "")
	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), config.ReadBackend, nil, nil))

	w, _ := postAsk(t, router, `{"question":"q"}`)
	if !strings.Contains(w.Body.String(), "first") {
		t.Fatalf("Expected first backend, got %s", w.Body.String())
	}

	t.Setenv("BACKEND_BASE_URL", second.srv.URL+"/")
	t.Setenv("BACKEND_API_KEY", "rotated")
	w, _ = postAsk(t, router, `{"question":"q"}`)
	if !strings.Contains(w.Body.String(), "second") {
		t.Fatalf("Expected second backend after env change, got %s", w.Body.String())
	}
	if key := <-second.keys; key != "rotated" {
		t.Errorf("Expected rotated API key, got %q", key)
	}
	if first.calls.Load() != 1 || second.calls.Load() != 1 {
		t.Errorf("Expected one call per backend, got %d and %d", first.calls.Load(), second.calls.Load())
	}
}

func TestAskForwardsRequestID(t *testing.T) {
	ids := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(backend.RequestIDHeader)
		_, _ = io.WriteString(w, `{"answer":"a","route":"rag"}`)
	}))
	defer srv.Close()

	router := newTestRouter(NewHandler(backend.NewClient(nil, nil), staticBackend(srv.URL, ""), nil, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set(chiMiddleware.RequestIDHeader, "trace-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got := <-ids; got != "trace-42" {
		t.Errorf("Expected forwarded request id trace-42, got %q", got)
	}
}

type stubForwarder struct {
	healthErr error
	target    chan config.Backend
}

func (s *stubForwarder) Query(_ context.Context, _ config.Backend, _, _ string) (*backend.Reply, error) {
	return nil, errors.New("not used")
}

func (s *stubForwarder) Health(ctx context.Context, target config.Backend) error {
	s.target <- target
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline on readiness probe")
	}
	return s.healthErr
}

func TestReady(t *testing.T) {
	tests := []struct {
		name        string
		healthErr   error
		wantStatus  int
		wantState   string
		wantBackend string
	}{
		{name: "backend up", wantStatus: http.StatusOK, wantState: "ok", wantBackend: "ok"},
		{name: "backend down", healthErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantState: "degraded", wantBackend: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := &stubForwarder{healthErr: tt.healthErr, target: make(chan config.Backend, 1)}
			cfg := &config.Config{ReadyTimeout: time.Second}
			router := newTestRouter(NewHandler(fwd, staticBackend("http://brain:8001", ""), cfg, nil))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, w.Code)
			}
			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode readiness body: %v", err)
			}
			if got.Status != tt.wantState || got.Checks["backend"] != tt.wantBackend || got.Checks["api"] != "ok" {
				t.Errorf("Unexpected readiness body %+v", got)
			}
			if target := <-fwd.target; target.BaseURL != "http://brain:8001" {
				t.Errorf("Unexpected probe target %q", target.BaseURL)
			}
		})
	}
}
