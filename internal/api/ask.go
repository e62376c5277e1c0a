package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/askvoice/internal/backend"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Details returned to the voice UI.
const (
	DetailQuestionRequired = "Question is required."
	DetailBodyTooLarge     = "Request body too large."
	DetailBackendFailed    = "Backend request failed."
	DetailInvalidResponse  = "Backend returned an invalid response."
	DetailInternal         = "Internal server error"
)

// RegisterRoutes registers the proxy and readiness routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ready", h.Ready)
	r.Route("/api", func(r chi.Router) {
		r.With(chiMiddleware.NoCache).Post("/ask", h.Ask)
	})
}

// Ask handles POST /api/ask: it validates the question, forwards it to the
// backend once and relays the reply.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req backend.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, r, http.StatusRequestEntityTooLarge, DetailBodyTooLarge)
			return
		}
		h.logger.Warn("Malformed ask request", "request_id", reqID, "error", err)
		Error(w, r, http.StatusInternalServerError, DetailInternal)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		Error(w, r, http.StatusBadRequest, DetailQuestionRequired)
		return
	}

	target := h.backendCfg()
	h.logger.Info("Forwarding question",
		"request_id", reqID,
		"backend", target.BaseURL,
		"question_length", len(question),
		"api_key", target.APIKey != "",
	)

	reply, err := h.forwarder.Query(r.Context(), target, question, reqID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("Client went away before backend replied", "request_id", reqID)
		} else {
			h.logger.Error("Backend call failed", "request_id", reqID, "error", err)
		}
		Error(w, r, http.StatusInternalServerError, DetailInternal)
		return
	}

	if !reply.OK() {
		detail := backend.DetailOf(reply.Body)
		if detail == "" {
			detail = DetailBackendFailed
		}
		h.logger.Warn("Backend rejected question", "request_id", reqID, "status", reply.Status, "detail", detail)
		Error(w, r, reply.Status, detail)
		return
	}

	if len(reply.Body) == 0 || !json.Valid(reply.Body) {
		h.logger.Error("Backend returned unparsable body", "request_id", reqID, "status", reply.Status, "bytes", len(reply.Body))
		Error(w, r, http.StatusInternalServerError, DetailInvalidResponse)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply.Body); err != nil {
		h.logger.Warn("failed to relay backend reply", "request_id", reqID, "error", err)
	}
}

// Ready reports whether the backend answers its health probe.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "ok",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.forwarder.Health(ctx, h.backendCfg()); err != nil {
		h.logger.Error("Readiness check failed", "error", err)
		status["status"] = "degraded"
		checks["backend"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	JSON(w, statusCode, status)
}
