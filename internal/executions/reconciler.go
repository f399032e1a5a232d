package executions

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/metrics"
)

// Reconciler republishes executions that were persisted but never dispatched.
type Reconciler struct {
	dispatcher *Dispatcher
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
	cron       *cron.Cron
}

func NewReconciler(dispatcher *Dispatcher, staleAfter time.Duration, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		dispatcher: dispatcher,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// RunOnce republishes one batch of stale undispatched executions and returns
// how many were requeued.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.staleAfter)

	stale, err := r.dispatcher.Store().ListUndispatched(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, exec := range stale {
		if err := r.dispatcher.Redispatch(ctx, exec); err != nil {
			log.Error().
				Err(err).
				Str("execution_id", exec.ID).
				Str("workflow_id", exec.WorkflowID).
				Msg("Failed to requeue execution")
			continue
		}
		requeued++
	}

	if requeued > 0 {
		metrics.RecordRequeued(requeued)
		log.Info().Int("requeued", requeued).Msg("Requeued undispatched executions")
	}

	return requeued, nil
}

// Start runs RunOnce on schedule, a standard five-field cron expression or a
// descriptor such as "@every 1m".
func (r *Reconciler) Start(ctx context.Context, schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	r.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Reconciliation sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reconciler schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	log.Info().Str("schedule", schedule).Dur("stale_after", r.staleAfter).Msg("Execution reconciler started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
