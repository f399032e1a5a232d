package workflows

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/database"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func TestStore_CreateGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &Workflow{UserID: "user-1", Name: "Daily digest", IsActive: true}
	require.NoError(t, s.Create(ctx, w))
	require.NotEmpty(t, w.ID)

	got, err := s.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Daily digest", got.Name)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_GetNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetActive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &Workflow{UserID: "user-1", Name: "wf", IsActive: true}
	require.NoError(t, s.Create(ctx, w))

	require.NoError(t, s.SetActive(ctx, w.ID, false))
	got, err := s.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetActive(ctx, "missing", true), ErrNotFound)
}

func TestStore_Upsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	w := &Workflow{ID: "wf-1", UserID: "user-1", Name: "first"}
	require.NoError(t, s.Upsert(ctx, w))

	w.Name = "second"
	w.IsActive = true
	require.NoError(t, s.Upsert(ctx, w))

	got, err := s.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
	assert.True(t, got.IsActive)
}
