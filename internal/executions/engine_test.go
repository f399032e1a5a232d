package executions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgent/flowgent/internal/events"
)

func TestStubEngine_ProcessesExecuteEvents(t *testing.T) {
	db := testDBExec(t)
	wf := testWorkflow(t, db)
	bus := events.NewEventBus(db, events.Config{})
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, NewStubEngine(store).Register(bus))

	d := NewDispatcher(store, bus)
	exec, err := d.Dispatch(ctx, wf.ID, ModeManual, map[string]any{"hello": "world"}, events.Metadata{})
	require.NoError(t, err)

	n, err := bus.ProcessPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := store.Get(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
}

func TestStubEngine_IgnoresRedelivery(t *testing.T) {
	db := testDBExec(t)
	wf := testWorkflow(t, db)
	store := NewStore(db)
	engine := NewStubEngine(store)
	ctx := context.Background()

	exec := &Execution{WorkflowID: wf.ID, Mode: ModeWebhook}
	require.NoError(t, store.Create(ctx, exec))

	event, err := events.New(EventExecute, ExecutePayload{WorkflowID: wf.ID, ExecutionID: exec.ID}, events.Metadata{})
	require.NoError(t, err)

	require.NoError(t, engine.Handle(ctx, event))
	require.NoError(t, engine.Handle(ctx, event))

	got, err := store.Get(ctx, exec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, got.Status)
}
