package executions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/events"
)

// Subscriber is the part of the event bus the engine listens on.
type Subscriber interface {
	Subscribe(pattern string, handler events.Handler) error
}

// StubEngine consumes workflow/execute events. Node execution is not part of
// this service, so it only walks each execution through RUNNING to SUCCESS.
type StubEngine struct {
	store *Store
}

func NewStubEngine(store *Store) *StubEngine {
	return &StubEngine{store: store}
}

// Register subscribes the engine to execute events.
func (e *StubEngine) Register(bus Subscriber) error {
	return bus.Subscribe(EventExecute, e.Handle)
}

func (e *StubEngine) Handle(ctx context.Context, event *events.Event) error {
	var payload ExecutePayload
	if err := event.Decode(&payload); err != nil {
		return err
	}

	logger := log.With().
		Str("execution_id", payload.ExecutionID).
		Str("workflow_id", payload.WorkflowID).
		Logger()

	if err := e.store.UpdateStatus(ctx, payload.ExecutionID, StatusRunning, ""); err != nil {
		// Redelivered events for executions that already ran are ignored.
		if errors.Is(err, ErrInvalidTransition) {
			logger.Debug().Msg("Execution already handled")
			return nil
		}
		return fmt.Errorf("starting execution: %w", err)
	}

	logger.Info().Int("trigger_bytes", len(payload.TriggerData)).Msg("Executing workflow")

	if err := e.store.UpdateStatus(ctx, payload.ExecutionID, StatusSuccess, ""); err != nil {
		return fmt.Errorf("finishing execution: %w", err)
	}
	return nil
}
