package executions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

var (
	ErrNotFound          = errors.New("execution not found")
	ErrInvalidTransition = errors.New("invalid execution status transition")
)

const selectColumns = `
	SELECT id, workflow_id, mode, status, input_data, error,
	       dispatched_at, started_at, finished_at, created_at, updated_at
	FROM executions
`

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new PENDING execution.
func (s *Store) Create(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	e.Status = StatusPending
	if len(e.InputData) == 0 {
		e.InputData = json.RawMessage("null")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, mode, status, input_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.WorkflowID,
		string(e.Mode),
		string(e.Status),
		string(e.InputData),
		database.FormatTime(e.CreatedAt),
		database.FormatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", database.ClassifyError(err))
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Execution, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	defer rows.Close()

	list, err := scanExecutions(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// ListByWorkflow returns the most recent executions of a workflow.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE workflow_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		workflowID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// MarkDispatched records that the execute event for id was published.
func (s *Store) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE executions SET dispatched_at = ?, updated_at = ? WHERE id = ?`,
		database.FormatTime(at), database.FormatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("marking execution dispatched: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUndispatched returns PENDING executions created before cutoff whose
// execute event was never published, oldest first.
func (s *Store) ListUndispatched(ctx context.Context, cutoff time.Time, limit int) ([]*Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+`
		WHERE status = ? AND dispatched_at IS NULL AND created_at < ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`,
		string(StatusPending), database.FormatTime(cutoff), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying undispatched executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// UpdateStatus moves an execution to status. Terminal executions cannot change
// and nothing moves back to PENDING.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	if status == StatusPending {
		return ErrInvalidTransition
	}

	now := database.Now()
	var errCol any
	if errMsg != "" {
		errCol = errMsg
	}

	query := `UPDATE executions SET status = ?, error = ?, updated_at = ?`
	args := []any{string(status), errCol, now}
	switch status {
	case StatusRunning:
		query += `, started_at = COALESCE(started_at, ?)`
		args = append(args, now)
	case StatusSuccess, StatusFailed:
		query += `, started_at = COALESCE(started_at, ?), finished_at = ?`
		args = append(args, now, now)
	}
	query += ` WHERE id = ? AND status IN (?, ?)`
	args = append(args, id, string(StatusPending), string(StatusRunning))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating execution status: %w", database.ClassifyError(err))
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func scanExecutions(rows *sql.Rows) ([]*Execution, error) {
	var list []*Execution

	for rows.Next() {
		var e Execution
		var input, createdAt, updatedAt string
		var errMsg, dispatchedAt, startedAt, finishedAt sql.NullString

		if err := rows.Scan(
			&e.ID,
			&e.WorkflowID,
			&e.Mode,
			&e.Status,
			&input,
			&errMsg,
			&dispatchedAt,
			&startedAt,
			&finishedAt,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}

		e.InputData = json.RawMessage(input)
		e.Error = errMsg.String
		e.DispatchedAt = database.ParseNullTime(dispatchedAt)
		e.StartedAt = database.ParseNullTime(startedAt)
		e.FinishedAt = database.ParseNullTime(finishedAt)
		e.CreatedAt = database.ParseTime(createdAt)
		e.UpdatedAt = database.ParseTime(updatedAt)

		list = append(list, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}

	return list, nil
}
