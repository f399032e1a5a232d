package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func tableColumns(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("getting %s schema: %v", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scanning column info: %v", err)
		}
		columns[name] = true
	}
	return columns
}

func TestRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	ran, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(ran) == 0 {
		t.Fatal("expected at least one migration to be applied")
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+versionTable).Scan(&count); err != nil {
		t.Fatalf("version table query failed: %v", err)
	}
	if count != len(ran) {
		t.Errorf("expected %d recorded migrations, got %d", len(ran), count)
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := Run(ctx, db); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}

	ran, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("expected no migrations on second run, got %v", ran)
	}

	status, err := Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	for _, m := range status {
		if !m.Applied {
			t.Errorf("migration %s not marked applied", m.ID)
		}
		if m.AppliedAt.IsZero() {
			t.Errorf("migration %s has no applied_at", m.ID)
		}
	}
}

func TestStatus_BeforeRun(t *testing.T) {
	db := testDB(t)

	status, err := Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if len(status) == 0 {
		t.Fatal("expected embedded migrations to be listed")
	}
	for _, m := range status {
		if m.Applied {
			t.Errorf("migration %s should not be applied yet", m.ID)
		}
	}
}

func TestSchema(t *testing.T) {
	db := testDB(t)
	if _, err := Run(context.Background(), db); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	required := map[string][]string{
		"workflows":         {"id", "user_id", "name", "is_active", "created_at", "updated_at"},
		"webhook_endpoints": {"id", "path", "workflow_id", "is_active", "verification", "last_called_at", "call_count"},
		"executions":        {"id", "workflow_id", "mode", "status", "input_data", "dispatched_at", "created_at"},
		"credentials":       {"id", "user_id", "name", "type", "provider", "data", "refresh_token", "expires_at", "scope", "metadata"},
		"events":            {"id", "name", "payload", "metadata", "status", "created_at", "processed_at"},
	}

	for table, cols := range required {
		columns := tableColumns(t, db, table)
		for _, col := range cols {
			if !columns[col] {
				t.Errorf("%s missing required column: %s", table, col)
			}
		}
	}

	var idx int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_executions_undispatched'
	`).Scan(&idx)
	if err != nil {
		t.Fatalf("checking index: %v", err)
	}
	if idx != 1 {
		t.Error("idx_executions_undispatched index does not exist")
	}
}

func TestSplitStatements(t *testing.T) {
	content := `
-- leading comment; with a semicolon
CREATE TABLE a (x TEXT DEFAULT 'a;b');
-- another
CREATE INDEX i ON a(x);
`
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x TEXT DEFAULT 'a;b')" {
		t.Errorf("unexpected first statement: %q", stmts[0])
	}
}
