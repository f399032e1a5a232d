// Package workflows stores workflow records. Only the fields the trigger path
// needs live here; the node graph belongs to the editor.
package workflows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgent/flowgent/internal/database"
)

var ErrNotFound = errors.New("workflow not found")

type Workflow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, w *Workflow) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.UserID, w.Name, w.Description, w.IsActive,
		database.FormatTime(w.CreatedAt), database.FormatTime(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", database.ClassifyError(err))
	}
	return nil
}

// Upsert inserts w or replaces the mutable fields of an existing row with the same id.
func (s *Store) Upsert(ctx context.Context, w *Workflow) error {
	if w.ID == "" {
		return s.Create(ctx, w)
	}
	now := database.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			description = excluded.description,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, w.ID, w.UserID, w.Name, w.Description, w.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("upserting workflow: %w", database.ClassifyError(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Workflow, error) {
	var w Workflow
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, is_active, created_at, updated_at
		FROM workflows WHERE id = ?
	`, id).Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workflow: %w", err)
	}

	w.CreatedAt = database.ParseTime(createdAt)
	w.UpdatedAt = database.ParseTime(updatedAt)
	return &w, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, database.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
