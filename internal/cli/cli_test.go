package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/credentials"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/scheduler"
	"github.com/flowgent/flowgent/internal/webhooks"
	"github.com/flowgent/flowgent/internal/workflows"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

const seedYAML = `
workflows:
  - id: wf-push
    user_id: user-1
    name: On push
    is_active: true
    webhooks:
      - path: github-push
        is_active: true
        verification:
          type: hmac-sha256
          header: X-Hub-Signature-256
          secret: ${FLOWGENT_TEST_HOOK_SECRET}
      - is_active: true
  - user_id: user-2
    name: Unnamed trigger
`

func TestParseSeedFile(t *testing.T) {
	t.Setenv("FLOWGENT_TEST_HOOK_SECRET", "s3cret")

	f, err := parseSeedFile([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, f.Workflows, 2)

	hooks := f.Workflows[0].Webhooks
	require.Len(t, hooks, 2)
	assert.Equal(t, "github-push", hooks[0].Path)
	require.NotNil(t, hooks[0].Verification)
	assert.Equal(t, webhooks.VerifyHMACSHA256, hooks[0].Verification.Type)
	assert.Equal(t, "s3cret", hooks[0].Verification.Secret)

	_, err = parseSeedFile([]byte("workflows:\n  - name: no owner\n"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	f, err := parseSeedFile([]byte(`
workflows:
  - id: wf-push
    user_id: user-1
    name: On push
    is_active: true
    webhooks:
      - path: github-push
        is_active: true
`))
	require.NoError(t, err)

	result, err := seed(ctx, db, nil, f)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Workflows)
	require.Len(t, result.Endpoints, 1)

	endpoints := webhooks.NewStore(db, nil)
	first, err := endpoints.GetActiveByPath(ctx, "github-push")
	require.NoError(t, err)
	require.NoError(t, endpoints.RecordCall(ctx, first.ID, first.CreatedAt))

	f.Workflows[0].Name = "On push (renamed)"
	f.Workflows[0].Webhooks[0].ID = ""
	_, err = seed(ctx, db, nil, f)
	require.NoError(t, err)

	wf, err := workflows.NewStore(db).Get(ctx, "wf-push")
	require.NoError(t, err)
	assert.Equal(t, "On push (renamed)", wf.Name)

	again, err := endpoints.GetActiveByPath(ctx, "github-push")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.EqualValues(t, 1, again.CallCount)
}

func TestSeed_GeneratesMissingPath(t *testing.T) {
	db := testDB(t)

	f, err := parseSeedFile([]byte(`
workflows:
  - user_id: user-1
    name: Generated
    is_active: true
    webhooks:
      - is_active: true
`))
	require.NoError(t, err)

	result, err := seed(context.Background(), db, nil, f)
	require.NoError(t, err)
	require.Len(t, result.Endpoints, 1)
	assert.Len(t, result.Endpoints[0].Path, 15)
	assert.NotEmpty(t, result.Endpoints[0].WorkflowID)
}

func TestSeed_Schedules(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	f, err := parseSeedFile([]byte(`
workflows:
  - id: wf-nightly
    user_id: user-1
    name: Nightly
    is_active: true
    schedules:
      - id: nightly
        cron: "0 2 * * *"
        timezone: Europe/Berlin
        is_active: true
`))
	require.NoError(t, err)

	result, err := seed(ctx, db, nil, f)
	require.NoError(t, err)
	require.Len(t, result.Schedules, 1)
	require.NotNil(t, result.Schedules[0].NextRunAt)

	f.Workflows[0].Schedules[0].CronExpression = "0 3 * * *"
	_, err = seed(ctx, db, nil, f)
	require.NoError(t, err)

	list, err := scheduler.NewStore(db).ListByWorkflow(ctx, "wf-nightly")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "nightly", list[0].ID)
	assert.Equal(t, "0 3 * * *", list[0].CronExpression)
	assert.Equal(t, "Europe/Berlin", list[0].Timezone)

	f.Workflows[0].Schedules[0].CronExpression = "whenever"
	_, err = seed(ctx, db, nil, f)
	assert.Error(t, err)
}

func TestSeed_VerificationSecret(t *testing.T) {
	t.Setenv("FLOWGENT_TEST_HOOK_SECRET", "s3cret")
	db := testDB(t)
	ctx := context.Background()

	f, err := parseSeedFile([]byte(seedYAML))
	require.NoError(t, err)

	_, err = seed(ctx, db, nil, f)
	assert.ErrorIs(t, err, webhooks.ErrNoSealer)

	encoded, err := credentials.GenerateKey()
	require.NoError(t, err)
	key, err := credentials.ParseKey(encoded)
	require.NoError(t, err)
	sealer, err := credentials.NewSealer(key)
	require.NoError(t, err)

	_, err = seed(ctx, db, sealer, f)
	require.NoError(t, err)

	var raw string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT verification FROM webhook_endpoints WHERE path = ?`, "github-push").Scan(&raw))
	assert.NotContains(t, raw, "s3cret")

	e, err := webhooks.NewStore(db, sealer).GetActiveByPath(ctx, "github-push")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", e.Verification.Secret)
}

func TestEnsureSecret(t *testing.T) {
	var secret string
	require.NoError(t, ensureSecret(&secret, "auth.session.secret"))
	assert.Len(t, secret, 64)

	short := "short"
	assert.Error(t, ensureSecret(&short, "oauth.state_secret"))
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FLOWGENT_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("FLOWGENT_AUTH_SESSION_SECRET", strings.Repeat("x", 32))

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute(), strings.Join(args, " "))
		return out.String()
	}

	assert.Contains(t, run("version"), "flowgent version")

	key := strings.TrimSpace(run("keygen"))
	assert.Len(t, key, 44)

	assert.Contains(t, run("migrate"), "up to date")
	assert.Contains(t, run("migrate", "status"), "applied")

	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
workflows:
  - id: wf-1
    user_id: user-1
    name: CLI
    webhooks:
      - path: cli-hook
    schedules:
      - id: cli-schedule
        cron: "@every 1h"
`), 0o600))
	out := run("seed", seedPath)
	assert.Contains(t, out, "/api/webhooks/cli-hook")
	assert.Contains(t, out, "1 webhook endpoints and 1 schedules")

	assert.Contains(t, run("reconcile"), "Requeued 0 executions")

	token := strings.SplitN(run("token", "user-1"), "\n", 2)[0]
	assert.Len(t, strings.Split(token, "."), 3)
}
