// Package api provides the HTTP handlers of the voice proxy.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/askvoice/internal/backend"
	"github.com/ashureev/askvoice/internal/config"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

const defaultReadyTimeout = 5 * time.Second

// Forwarder sends a question to the backend and returns its raw reply.
type Forwarder interface {
	Query(ctx context.Context, target config.Backend, question, requestID string) (*backend.Reply, error)
	Health(ctx context.Context, target config.Backend) error
}

// Handler provides the proxy and readiness endpoints.
type Handler struct {
	forwarder    Forwarder
	backendCfg   config.BackendFunc
	maxBodySize  int64
	readyTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a Handler. backendCfg is called on every request.
func NewHandler(forwarder Forwarder, backendCfg config.BackendFunc, cfg *config.Config, logger *slog.Logger) *Handler {
	if backendCfg == nil {
		backendCfg = config.ReadBackend
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		forwarder:    forwarder,
		backendCfg:   backendCfg,
		maxBodySize:  defaultMaxRequestBodySize,
		readyTimeout: defaultReadyTimeout,
		logger:       logger,
	}
	if cfg != nil {
		if cfg.MaxRequestBodySize > 0 {
			h.maxBodySize = cfg.MaxRequestBodySize
		}
		if cfg.ReadyTimeout > 0 {
			h.readyTimeout = cfg.ReadyTimeout
		}
	}
	return h
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes the {"detail", "request_id"} error envelope.
func Error(w http.ResponseWriter, r *http.Request, status int, detail string) {
	JSON(w, status, backend.ErrorBody{
		Detail:    detail,
		RequestID: chiMiddleware.GetReqID(r.Context()),
	})
}
