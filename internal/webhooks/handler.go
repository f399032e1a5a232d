package webhooks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/metrics"
)

// Methods are the HTTP methods a webhook path answers to.
var Methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Handler serves /api/webhooks/{path...}. All methods share one code path and
// every response is JSON, since callers are programs rather than browsers.
type Handler struct {
	ingester *Ingester
}

func NewHandler(ingester *Ingester) *Handler {
	return &Handler{ingester: ingester}
}

type acceptedResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"executionId"`
	Message     string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	exec, err := h.ingester.Ingest(r.Context(), path, r)
	if err != nil {
		h.writeError(w, r, path, err)
		return
	}

	metrics.RecordWebhookCall(r.Method, "accepted")
	writeJSON(w, http.StatusOK, acceptedResponse{
		Success:     true,
		ExecutionID: exec.ID,
		Message:     "Workflow execution started",
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, path string, err error) {
	switch {
	case errors.Is(err, ErrEndpointNotFound):
		metrics.RecordWebhookCall(r.Method, "not_found")
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Webhook not found or inactive"})
	case errors.Is(err, ErrWorkflowInactive):
		metrics.RecordWebhookCall(r.Method, "inactive_workflow")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Workflow is not active"})
	case errors.Is(err, ErrInvalidSignature):
		metrics.RecordWebhookCall(r.Method, "invalid_signature")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid signature"})
	case errors.Is(err, ErrBodyTooLarge):
		metrics.RecordWebhookCall(r.Method, "body_too_large")
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
	case errors.Is(err, ErrMalformedBody):
		metrics.RecordWebhookCall(r.Method, "malformed_body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Malformed request body"})
	default:
		metrics.RecordWebhookCall(r.Method, "error")
		log.Error().Err(err).Str("path", path).Str("method", r.Method).Msg("Webhook ingestion failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Message: "failed to process webhook",
		})
	}
}

// RegisterRoutes mounts the handler for every method in Methods under prefix,
// e.g. "/api/webhooks", wrapped in middleware from outermost to innermost.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, prefix string, middleware ...func(http.Handler) http.Handler) {
	var handler http.Handler = h
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	for _, method := range Methods {
		mux.Handle(method+" "+prefix+"/{path...}", handler)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode webhook response")
	}
}
