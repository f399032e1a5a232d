package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
	"github.com/flowgent/flowgent/internal/requestctx"
	"github.com/flowgent/flowgent/internal/workflows"
)

var (
	ErrWorkflowInactive = errors.New("workflow is not active")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Ingester turns an inbound call on a webhook path into a dispatched WEBHOOK
// execution.
type Ingester struct {
	endpoints  *Store
	workflows  *workflows.Store
	dispatcher *executions.Dispatcher
	maxBody    int64
	now        func() time.Time
}

func NewIngester(endpoints *Store, wf *workflows.Store, dispatcher *executions.Dispatcher, maxBody int64) *Ingester {
	return &Ingester{
		endpoints:  endpoints,
		workflows:  wf,
		dispatcher: dispatcher,
		maxBody:    maxBody,
		now:        time.Now,
	}
}

// Ingest resolves path, records an execution for r and publishes it.
//
// Errors: ErrEndpointNotFound for a missing or inactive endpoint,
// ErrWorkflowInactive, ErrInvalidSignature, ErrBodyTooLarge and
// ErrMalformedBody. Anything else is internal. A publish failure returns the
// created execution along with an error wrapping executions.ErrPublish.
func (i *Ingester) Ingest(ctx context.Context, path string, r *http.Request) (*executions.Execution, error) {
	endpoint, err := i.endpoints.GetActiveByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	wf, err := i.workflows.Get(ctx, endpoint.WorkflowID)
	if err != nil {
		if errors.Is(err, workflows.ErrNotFound) {
			return nil, ErrEndpointNotFound
		}
		return nil, fmt.Errorf("loading workflow: %w", err)
	}
	if !wf.IsActive {
		return nil, ErrWorkflowInactive
	}

	now := requestctx.ReceivedAt(ctx, i.now)
	trigger, raw, err := NewTriggerData(r, path, now, i.maxBody)
	if err != nil {
		return nil, err
	}

	if endpoint.Verification != nil {
		result := endpoint.Verification.Verify(r.Header, raw)
		if !result.Valid {
			log.Warn().
				Str("path", path).
				Str("method", result.Method).
				Str("error", result.Error).
				Msg("Webhook signature verification failed")
			return nil, ErrInvalidSignature
		}
	}

	exec, err := i.dispatcher.Prepare(ctx, wf.ID, executions.ModeWebhook, trigger)
	if err != nil {
		return nil, fmt.Errorf("creating execution: %w", err)
	}

	if err := i.endpoints.RecordCall(ctx, endpoint.ID, now); err != nil {
		// The endpoint went away between lookup and update; never run this execution.
		if ferr := i.dispatcher.Store().UpdateStatus(ctx, exec.ID, executions.StatusFailed, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("execution_id", exec.ID).Msg("Failed to fail orphaned execution")
		}
		return nil, err
	}

	meta := events.Metadata{
		RequestID: requestctx.RequestID(ctx),
		Source:    "webhook",
	}
	if err := i.dispatcher.Publish(ctx, exec, meta); err != nil {
		return exec, err
	}

	log.Debug().
		Str("path", path).
		Str("workflow_id", wf.ID).
		Str("execution_id", exec.ID).
		Msg("Webhook execution dispatched")

	return exec, nil
}
