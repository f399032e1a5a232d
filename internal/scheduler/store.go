package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

// Store handles database operations for schedule triggers.
type Store struct {
	db  *database.DB
	now func() time.Time
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const triggerColumns = `id, workflow_id, cron_expression, timezone, is_active, next_run_at, last_fired_at, created_at, updated_at`

// Create validates the expression, computes the first run and inserts t.
func (s *Store) Create(ctx context.Context, t *Trigger) error {
	if err := s.prepare(t); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_triggers (`+triggerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`, t.ID, t.WorkflowID, t.CronExpression, t.Timezone, t.IsActive, database.NullTime(t.NextRunAt),
		database.FormatTime(t.CreatedAt), database.FormatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting schedule trigger: %w", database.ClassifyError(err))
	}
	return nil
}

// Upsert inserts t or updates the trigger with the same id. The next run is
// recomputed so an edited expression takes effect immediately; last_fired_at
// is preserved.
func (s *Store) Upsert(ctx context.Context, t *Trigger) error {
	if err := s.prepare(t); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_triggers (`+triggerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			cron_expression = excluded.cron_expression,
			timezone = excluded.timezone,
			is_active = excluded.is_active,
			next_run_at = excluded.next_run_at,
			updated_at = excluded.updated_at
	`, t.ID, t.WorkflowID, t.CronExpression, t.Timezone, t.IsActive, database.NullTime(t.NextRunAt),
		database.FormatTime(t.CreatedAt), database.FormatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting schedule trigger: %w", database.ClassifyError(err))
	}
	return nil
}

func (s *Store) prepare(t *Trigger) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Timezone == "" {
		t.Timezone = "UTC"
	}

	now := s.now().UTC()
	next, err := NextRun(t.CronExpression, t.Timezone, now)
	if err != nil {
		return err
	}
	t.NextRunAt = &next
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Trigger, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+triggerColumns+` FROM schedule_triggers WHERE id = ?`, id)
	t, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTriggerNotFound
		}
		return nil, fmt.Errorf("getting schedule trigger: %w", err)
	}
	return t, nil
}

// ListByWorkflow returns the triggers attached to workflowID.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID string) ([]*Trigger, error) {
	return s.query(ctx, `SELECT `+triggerColumns+` FROM schedule_triggers
		WHERE workflow_id = ? ORDER BY created_at ASC`, workflowID)
}

// GetDue returns active triggers of active workflows whose next run is at or
// before now, oldest first.
func (s *Store) GetDue(ctx context.Context, now time.Time, limit int) ([]*Trigger, error) {
	return s.query(ctx, `
		SELECT t.id, t.workflow_id, t.cron_expression, t.timezone, t.is_active,
			t.next_run_at, t.last_fired_at, t.created_at, t.updated_at
		FROM schedule_triggers t
		JOIN workflows w ON w.id = t.workflow_id
		WHERE t.is_active = 1 AND w.is_active = 1
			AND t.next_run_at IS NOT NULL AND t.next_run_at <= ?
		ORDER BY t.next_run_at ASC
		LIMIT ?
	`, database.FormatTime(now), limit)
}

// Claim advances t to next and stamps firedAt, but only if no one else has
// advanced it since t was read. It reports whether this caller won.
func (s *Store) Claim(ctx context.Context, t *Trigger, firedAt, next time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_triggers
		SET next_run_at = ?, last_fired_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND next_run_at IS ?
	`, database.FormatTime(next), database.FormatTime(firedAt), database.FormatTime(firedAt),
		t.ID, database.NullTime(t.NextRunAt))
	if err != nil {
		return false, fmt.Errorf("claiming schedule trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming schedule trigger: %w", err)
	}
	return n == 1, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_triggers SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, database.Now(), id)
	if err != nil {
		return fmt.Errorf("updating schedule trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTriggerNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Trigger, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedule triggers: %w", err)
	}
	defer rows.Close()

	triggers := []*Trigger{}
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule trigger row: %w", err)
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule trigger rows: %w", err)
	}
	return triggers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row scanner) (*Trigger, error) {
	var (
		t                    Trigger
		nextRunAt, lastFired sql.NullString
		createdAt, updatedAt string
	)

	if err := row.Scan(&t.ID, &t.WorkflowID, &t.CronExpression, &t.Timezone, &t.IsActive,
		&nextRunAt, &lastFired, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.NextRunAt = database.ParseNullTime(nextRunAt)
	t.LastFiredAt = database.ParseNullTime(lastFired)
	t.CreatedAt = database.ParseTime(createdAt)
	t.UpdatedAt = database.ParseTime(updatedAt)
	return &t, nil
}
