package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
	"github.com/flowgent/flowgent/internal/requestctx"
	"github.com/flowgent/flowgent/internal/workflows"
)

const defaultExecutionListLimit = 50

// ManualTrigger is the input stored for a MANUAL execution.
type ManualTrigger struct {
	UserID    string          `json:"userId"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type ExecutionHandlers struct {
	workflows  *workflows.Store
	dispatcher *executions.Dispatcher
}

func NewExecutionHandlers(wf *workflows.Store, dispatcher *executions.Dispatcher) *ExecutionHandlers {
	return &ExecutionHandlers{workflows: wf, dispatcher: dispatcher}
}

// Execute handles POST /api/workflows/{id}/execute.
func (h *ExecutionHandlers) Execute(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.ownedWorkflow(w, r)
	if !ok {
		return
	}
	if !wf.IsActive {
		BadRequest(w, "Workflow is not active")
		return
	}

	data, err := readJSONBody(r)
	if err != nil {
		BadRequest(w, "Invalid JSON body")
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	trigger := ManualTrigger{
		UserID:    session.UserID,
		Data:      data,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	meta := events.Metadata{
		RequestID: requestctx.RequestID(r.Context()),
		UserID:    session.UserID,
		Source:    "manual",
	}

	exec, err := h.dispatcher.Dispatch(r.Context(), wf.ID, executions.ModeManual, trigger, meta)
	if err != nil {
		log.Error().Err(err).Str("workflow_id", wf.ID).Msg("Manual execution failed to start")
		ServerError(w, "failed to start execution")
		return
	}

	JSON(w, http.StatusAccepted, map[string]any{
		"success":     true,
		"executionId": exec.ID,
	})
}

// List handles GET /api/workflows/{id}/executions.
func (h *ExecutionHandlers) List(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.ownedWorkflow(w, r)
	if !ok {
		return
	}

	limit := defaultExecutionListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	list, err := h.dispatcher.Store().ListByWorkflow(r.Context(), wf.ID, limit)
	if err != nil {
		log.Error().Err(err).Str("workflow_id", wf.ID).Msg("Failed to list executions")
		InternalError(w, "Failed to list executions")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"executions": list,
		"count":      len(list),
	})
}

// ownedWorkflow loads {id} and writes a 404 unless the caller owns it.
func (h *ExecutionHandlers) ownedWorkflow(w http.ResponseWriter, r *http.Request) (*workflows.Workflow, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		Unauthorized(w, "Authentication required")
		return nil, false
	}

	wf, err := h.workflows.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, workflows.ErrNotFound) {
			NotFound(w, "Workflow not found")
			return nil, false
		}
		log.Error().Err(err).Msg("Failed to load workflow")
		InternalError(w, "Failed to load workflow")
		return nil, false
	}

	if wf.UserID != session.UserID {
		NotFound(w, "Workflow not found")
		return nil, false
	}

	return wf, true
}

// readJSONBody returns the request body as raw JSON, or JSON null when empty.
func readJSONBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, errors.New("invalid json")
	}
	return json.RawMessage(body), nil
}
