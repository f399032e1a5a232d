package credentials

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/integrations"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParseKey(encoded)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)
	return s
}

func testStore(t *testing.T) (*Store, *database.DB) {
	t.Helper()

	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db, testSealer(t)), db
}

func TestSealer_RoundTrip(t *testing.T) {
	s := testSealer(t)

	sealed, err := s.Seal([]byte("xoxb-secret"), []byte("cred-1"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "xoxb-secret")

	plain, err := s.Open(sealed, []byte("cred-1"))
	require.NoError(t, err)
	assert.Equal(t, "xoxb-secret", string(plain))
}

func TestSealer_Failures(t *testing.T) {
	s := testSealer(t)
	sealed, err := s.Seal([]byte("secret"), []byte("cred-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("cred-2"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = testSealer(t).Open(sealed, []byte("cred-1"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = s.Open("not base64!", nil)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = s.Open("c2hvcnQ=", nil)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("c2hvcnQ=")
	assert.Error(t, err)

	_, err = ParseKey("%%%")
	assert.Error(t, err)
}

func TestStore_CreateAndGet(t *testing.T) {
	store, db := testStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	c := &Credential{
		UserID:       "user-1",
		Name:         "GitHub",
		Type:         integrations.AuthOAuth2,
		Provider:     "github",
		Data:         map[string]string{"accessToken": "gho_abc"},
		RefreshToken: "ghr_xyz",
		ExpiresAt:    &expires,
		Scope:        "repo",
		Metadata:     map[string]any{"tokenType": "bearer"},
	}
	require.NoError(t, store.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	var rawData, rawRefresh string
	err := db.QueryRowContext(ctx, `SELECT data, refresh_token FROM credentials WHERE id = ?`, c.ID).Scan(&rawData, &rawRefresh)
	require.NoError(t, err)
	assert.NotContains(t, rawData, "gho_abc")
	assert.NotContains(t, rawRefresh, "ghr_xyz")

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, integrations.AuthOAuth2, got.Type)
	assert.Equal(t, "github", got.Provider)
	assert.Equal(t, "gho_abc", got.Data["accessToken"])
	assert.Equal(t, "ghr_xyz", got.RefreshToken)
	assert.Equal(t, "repo", got.Scope)
	assert.Equal(t, "bearer", got.Metadata["tokenType"])
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))
}

func TestStore_GetRejectsSwappedColumns(t *testing.T) {
	store, db := testStore(t)
	ctx := context.Background()

	c := &Credential{
		UserID:       "user-1",
		Name:         "GitHub",
		Type:         integrations.AuthOAuth2,
		Provider:     "github",
		Data:         map[string]string{"accessToken": "gho_abc"},
		RefreshToken: "ghr_xyz",
	}
	require.NoError(t, store.Create(ctx, c))

	_, err := db.ExecContext(ctx, `UPDATE credentials SET data = refresh_token, refresh_token = data WHERE id = ?`, c.ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStore_GetRejectsMovedCiphertext(t *testing.T) {
	store, db := testStore(t)
	ctx := context.Background()

	first := &Credential{UserID: "user-1", Name: "A", Type: integrations.AuthOAuth2, Provider: "github",
		Data: map[string]string{"accessToken": "first"}}
	second := &Credential{UserID: "user-2", Name: "B", Type: integrations.AuthOAuth2, Provider: "github",
		Data: map[string]string{"accessToken": "second"}}
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	_, err := db.ExecContext(ctx, `UPDATE credentials SET data = (SELECT data FROM credentials WHERE id = ?) WHERE id = ?`, first.ID, second.ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, second.ID)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStore_OptionalFields(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	c := &Credential{
		UserID:   "user-1",
		Name:     "Slack",
		Type:     integrations.AuthOAuth2,
		Provider: "slack",
		Data:     map[string]string{"accessToken": "xoxb"},
	}
	require.NoError(t, store.Create(ctx, c))

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.Empty(t, got.RefreshToken)
	assert.Empty(t, got.Scope)
	assert.NotNil(t, got.Metadata)
}

func TestStore_GetNotFound(t *testing.T) {
	store, _ := testStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EachCreateAddsRow(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, store.Create(ctx, &Credential{
			UserID:   "user-1",
			Name:     "Notion",
			Type:     integrations.AuthOAuth2,
			Provider: "notion",
			Data:     map[string]string{"accessToken": "secret"},
		}))
	}
	require.NoError(t, store.Create(ctx, &Credential{
		UserID:   "user-2",
		Name:     "Notion",
		Type:     integrations.AuthOAuth2,
		Provider: "notion",
		Data:     map[string]string{"accessToken": "secret"},
	}))

	n, err := store.CountByUser(ctx, "user-1", "notion")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, "notion", s.Provider)
	}

	empty, err := store.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
