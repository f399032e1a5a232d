// Package events is a small durable event bus backed by the events table.
// Publish only writes a row; a background loop hands pending rows to
// subscribers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"

	"github.com/flowgent/flowgent/internal/database"
)

// Handler processes one event.
type Handler func(ctx context.Context, event *Event) error

type subscription struct {
	pattern string
	matcher glob.Glob
	handler Handler
}

// Config holds EventBus settings. Zero values fall back to defaults.
type Config struct {
	ProcessInterval time.Duration
	CleanupInterval time.Duration
	// How long completed and failed events are kept.
	Retention time.Duration
	BatchSize int
}

type EventBus struct {
	store         *Store
	cfg           Config
	subscriptions []subscription
	mu            sync.RWMutex
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewEventBus(db *database.DB, cfg Config) *EventBus {
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &EventBus{
		store: NewStore(db),
		cfg:   cfg,
	}
}

// Store exposes the underlying event store.
func (bus *EventBus) Store() *Store {
	return bus.store
}

// Start launches the processing and cleanup loops. They stop when ctx is
// cancelled or Stop is called.
func (bus *EventBus) Start(ctx context.Context) {
	ctx, bus.cancel = context.WithCancel(ctx)

	bus.wg.Add(2)
	go bus.loop(ctx, bus.cfg.ProcessInterval, func(ctx context.Context) {
		if _, err := bus.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Failed to process pending events")
		}
	})
	go bus.loop(ctx, bus.cfg.CleanupInterval, func(ctx context.Context) {
		n, err := bus.store.DeleteOlderThan(ctx, bus.cfg.Retention)
		if err != nil {
			log.Error().Err(err).Msg("Failed to cleanup old events")
			return
		}
		if n > 0 {
			log.Debug().Int64("deleted", n).Msg("Cleaned up old events")
		}
	})
}

// Stop cancels the background loops and waits for them to exit.
func (bus *EventBus) Stop() {
	if bus.cancel != nil {
		bus.cancel()
	}
	bus.wg.Wait()
}

// Publish queues an event. It returns once the event is stored, before any
// handler runs.
func (bus *EventBus) Publish(ctx context.Context, event *Event) error {
	if event.Name == "" {
		return errors.New("event name is required")
	}
	if err := bus.store.Create(ctx, event); err != nil {
		return fmt.Errorf("creating event: %w", err)
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("event", event.Name).
		Str("request_id", event.Metadata.RequestID).
		Msg("Event published")

	return nil
}

// Subscribe registers handler for events whose name matches pattern. Patterns
// are globs with '/' as separator, so "workflow/*" matches "workflow/execute"
// and "*" alone matches single-segment names only; use "**" for everything.
func (bus *EventBus) Subscribe(pattern string, handler Handler) error {
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return fmt.Errorf("invalid subscription pattern %q: %w", pattern, err)
	}

	bus.mu.Lock()
	bus.subscriptions = append(bus.subscriptions, subscription{
		pattern: pattern,
		matcher: matcher,
		handler: handler,
	})
	bus.mu.Unlock()

	log.Debug().Str("pattern", pattern).Msg("Handler subscribed")
	return nil
}

// ProcessPending runs handlers for one batch of pending events and returns how
// many events it processed.
func (bus *EventBus) ProcessPending(ctx context.Context) (int, error) {
	pending, err := bus.store.Pending(ctx, bus.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("getting pending events: %w", err)
	}

	processed := 0
	for _, event := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		claimed, err := bus.store.Claim(ctx, event.ID)
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}

		bus.dispatch(ctx, event)
		processed++
	}

	return processed, nil
}

func (bus *EventBus) dispatch(ctx context.Context, event *Event) {
	handlers := bus.handlersFor(event.Name)

	var errs []error
	for _, handler := range handlers {
		if err := bus.run(ctx, handler, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("event", event.Name).
				Msg("Event handler failed")
			errs = append(errs, err)
		}
	}

	status, msg := StatusCompleted, ""
	if err := errors.Join(errs...); err != nil {
		status, msg = StatusFailed, err.Error()
	}

	if err := bus.store.Finish(ctx, event.ID, status, msg); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to record event status")
		return
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("event", event.Name).
		Str("status", status).
		Int("handlers", len(handlers)).
		Msg("Event processed")
}

// run calls handler, turning a panic into an error so one bad handler does not
// take down the loop.
func (bus *EventBus) run(ctx context.Context, handler Handler, event *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return handler(ctx, event)
}

func (bus *EventBus) handlersFor(name string) []Handler {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	var handlers []Handler
	for _, sub := range bus.subscriptions {
		if sub.matcher.Match(name) {
			handlers = append(handlers, sub.handler)
		}
	}
	return handlers
}

func (bus *EventBus) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer bus.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
