package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgent/flowgent/internal/auth"
	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
	"github.com/flowgent/flowgent/internal/workflows"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestHealth(t *testing.T) {
	db := testDB(t)
	h := NewHealthHandlers(db, "1.2.3")

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, HealthStatusHealthy, resp.Components["database"].Status)

	require.NoError(t, db.Close())

	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandlers(nil, "").Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// failingPublisher never accepts an event.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *events.Event) error {
	return errors.New("bus unavailable")
}

func TestExecute_PublishFailure(t *testing.T) {
	db := testDB(t)
	wfStore := workflows.NewStore(db)
	wf := &workflows.Workflow{UserID: "owner", Name: "manual", IsActive: true}
	require.NoError(t, wfStore.Create(context.Background(), wf))

	dispatcher := executions.NewDispatcher(executions.NewStore(db), failingPublisher{})
	h := NewExecutionHandlers(wfStore, dispatcher)

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/"+wf.ID+"/execute", nil)
	req.SetPathValue("id", wf.ID)
	req = req.WithContext(auth.ContextWithSession(req.Context(), &auth.Session{UserID: "owner"}))

	w := httptest.NewRecorder()
	h.Execute(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","message":"failed to start execution"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "bus unavailable")
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", "Unknown provider")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Unknown provider","code":"UNKNOWN_PROVIDER"}`, w.Body.String())
}
