package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
	"github.com/flowgent/flowgent/internal/metrics"
)

// isoMillis matches the timestamp format of webhook trigger data.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ErrAlreadyClaimed means another caller advanced the trigger first.
var ErrAlreadyClaimed = errors.New("schedule trigger already fired")

// Dispatcher records and publishes an execution. *executions.Dispatcher
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, workflowID string, mode executions.Mode, triggerData any, meta events.Metadata) (*executions.Execution, error)
}

// Scheduler polls for due triggers and dispatches a SCHEDULE execution for
// each. A trigger is advanced before it is dispatched, so several instances
// sharing a database fire it at most once per run. Runs missed while nothing
// was polling collapse into a single fire.
type Scheduler struct {
	store        *Store
	dispatcher   Dispatcher
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewScheduler(store *Store, dispatcher Dispatcher, cfg config.SchedulerConfig) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultSchedulerPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultSchedulerBatchSize
	}
	return &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		now:          time.Now,
	}
}

// Start begins polling in the background until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.pollLoop(ctx)

	log.Info().Dur("poll_interval", s.pollInterval).Msg("Scheduler started")
}

// Stop halts polling and waits for an in-flight batch to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ProcessDue(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to process due schedule triggers")
			}
		}
	}
}

// ProcessDue fires one batch of due triggers and returns how many executions
// it dispatched.
func (s *Scheduler) ProcessDue(ctx context.Context) (int, error) {
	due, err := s.store.GetDue(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("getting due triggers: %w", err)
	}

	fired := 0
	for _, t := range due {
		_, err := s.Fire(ctx, t)
		switch {
		case err == nil, errors.Is(err, executions.ErrPublish):
			fired++
		case errors.Is(err, ErrAlreadyClaimed):
			log.Debug().Str("trigger_id", t.ID).Msg("Schedule trigger claimed elsewhere")
		default:
			log.Error().
				Err(err).
				Str("trigger_id", t.ID).
				Str("workflow_id", t.WorkflowID).
				Msg("Failed to fire schedule trigger")
		}
	}

	return fired, nil
}

// Fire advances t to its next run and dispatches one SCHEDULE execution of
// its workflow. It returns ErrAlreadyClaimed if t was advanced since it was
// read. A publish failure returns the execution with an error wrapping
// executions.ErrPublish; the reconciler requeues it.
func (s *Scheduler) Fire(ctx context.Context, t *Trigger) (*executions.Execution, error) {
	now := s.now().UTC()

	next, err := NextRun(t.CronExpression, t.Timezone, now)
	if err != nil {
		metrics.RecordScheduleFire("failed")
		return nil, err
	}

	claimed, err := s.store.Claim(ctx, t, now, next)
	if err != nil {
		metrics.RecordScheduleFire("failed")
		return nil, err
	}
	if !claimed {
		metrics.RecordScheduleFire("skipped")
		return nil, ErrAlreadyClaimed
	}

	data := TriggerData{
		TriggerID: t.ID,
		Cron:      t.CronExpression,
		Timezone:  t.Timezone,
		Timestamp: now.Format(isoMillis),
	}
	exec, err := s.dispatcher.Dispatch(ctx, t.WorkflowID, executions.ModeSchedule, data, events.Metadata{Source: "schedule"})
	if err != nil && exec == nil {
		metrics.RecordScheduleFire("failed")
		return nil, fmt.Errorf("dispatching scheduled execution: %w", err)
	}
	metrics.RecordScheduleFire("fired")

	t.LastFiredAt = &now
	t.NextRunAt = &next

	log.Debug().
		Str("trigger_id", t.ID).
		Str("workflow_id", t.WorkflowID).
		Str("execution_id", exec.ID).
		Time("next_run", next).
		Msg("Schedule trigger fired")

	return exec, err
}
