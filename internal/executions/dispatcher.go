package executions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/metrics"
)

// ErrPublish means the execution row exists but its execute event was not published.
var ErrPublish = errors.New("failed to publish execute event")

// Publisher queues events for the execution engine.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Dispatcher persists an execution and then publishes its execute event. The
// two steps are not atomic; rows whose publish failed keep a NULL
// dispatched_at and are picked up by the Reconciler.
type Dispatcher struct {
	store     *Store
	publisher Publisher
	now       func() time.Time
}

func NewDispatcher(store *Store, publisher Publisher) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Store returns the execution store the dispatcher writes to.
func (d *Dispatcher) Store() *Store {
	return d.store
}

// Dispatch creates a PENDING execution of workflowID with triggerData as its
// input and publishes it. When publishing fails the created execution is
// returned together with an error wrapping ErrPublish.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, mode Mode, triggerData any, meta events.Metadata) (*Execution, error) {
	exec, err := d.Prepare(ctx, workflowID, mode, triggerData)
	if err != nil {
		return nil, err
	}

	if err := d.Publish(ctx, exec, meta); err != nil {
		return exec, err
	}

	return exec, nil
}

// Prepare persists a PENDING execution without publishing it. Callers that
// must do more work between the insert and the publish call Publish themselves.
func (d *Dispatcher) Prepare(ctx context.Context, workflowID string, mode Mode, triggerData any) (*Execution, error) {
	input, err := json.Marshal(triggerData)
	if err != nil {
		return nil, fmt.Errorf("marshaling trigger data: %w", err)
	}

	exec := &Execution{
		WorkflowID: workflowID,
		Mode:       mode,
		InputData:  input,
	}
	if err := d.store.Create(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// Publish queues the execute event for exec and stamps it dispatched.
func (d *Dispatcher) Publish(ctx context.Context, exec *Execution, meta events.Metadata) error {
	err := d.publish(ctx, exec, meta)
	metrics.RecordDispatch(string(exec.Mode), err == nil)
	return err
}

// Redispatch publishes the execute event for an existing execution again.
func (d *Dispatcher) Redispatch(ctx context.Context, exec *Execution) error {
	return d.publish(ctx, exec, events.Metadata{Source: "reconciler"})
}

func (d *Dispatcher) publish(ctx context.Context, exec *Execution, meta events.Metadata) error {
	event, err := events.New(EventExecute, ExecutePayload{
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		TriggerData: exec.InputData,
	}, meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}

	now := d.now().UTC()
	if err := d.store.MarkDispatched(ctx, exec.ID, now); err != nil {
		// The event is queued; a missing stamp only means the reconciler may publish it twice.
		log.Warn().Err(err).Str("execution_id", exec.ID).Msg("Failed to mark execution dispatched")
		return nil
	}
	exec.DispatchedAt = &now

	return nil
}
