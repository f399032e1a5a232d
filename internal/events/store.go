package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

// Store handles database operations for events.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.Status = StatusPending
	if len(event.Payload) == 0 {
		event.Payload = json.RawMessage("null")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, payload, metadata, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Name,
		string(event.Payload),
		string(metadata),
		event.Status,
		database.FormatTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// Pending returns up to limit pending events, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, metadata, status, error, created_at, processed_at
		FROM events
		WHERE status = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, metadata, status, error, created_at, processed_at
		FROM events WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, sql.ErrNoRows
	}
	return events[0], nil
}

// Claim moves a pending event to processing. It reports false when another
// worker got there first.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ? AND status = ?`,
		StatusProcessing, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	return n == 1, nil
}

// Finish records the final status of a processed event.
func (s *Store) Finish(ctx context.Context, id, status, errMsg string) error {
	var errCol any
	if errMsg != "" {
		errCol = errMsg
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ?, error = ?, processed_at = ? WHERE id = ?`,
		status, errCol, database.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	return nil
}

// DeleteOlderThan removes finished events created before now minus age.
func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := database.FormatTime(time.Now().Add(-age))

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE created_at < ? AND status IN (?, ?)
	`, cutoff, StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}

	return result.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event

	for rows.Next() {
		var event Event
		var payload, metadata, createdAt string
		var errMsg, processedAt sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.Name,
			&payload,
			&metadata,
			&event.Status,
			&errMsg,
			&createdAt,
			&processedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		event.Payload = json.RawMessage(payload)
		if err := json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
		event.Error = errMsg.String
		event.CreatedAt = database.ParseTime(createdAt)
		event.ProcessedAt = database.ParseNullTime(processedAt)

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}
