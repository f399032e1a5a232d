// Package migrations applies the embedded schema for Flowgent's tables.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const versionTable = "_flowgent_migrations"

// Migration describes one embedded migration file and whether it has been applied.
type Migration struct {
	ID        string
	Applied   bool
	AppliedAt time.Time
}

type migration struct {
	id      string
	content string
}

// Run applies every pending migration in filename order, each in its own transaction.
// It returns the IDs of the migrations it applied.
func Run(ctx context.Context, db *sql.DB) ([]string, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensuring version table: %w", err)
	}

	applied, err := appliedAt(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	pending, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	var ran []string
	for _, m := range pending {
		if _, ok := applied[m.id]; ok {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return ran, fmt.Errorf("applying migration %s: %w", m.id, err)
		}
		log.Info().Str("migration", m.id).Msg("Applied migration")
		ran = append(ran, m.id)
	}

	return ran, nil
}

// Status lists every embedded migration alongside its applied state.
func Status(ctx context.Context, db *sql.DB) ([]Migration, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensuring version table: %w", err)
	}

	applied, err := appliedAt(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	all, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	result := make([]Migration, 0, len(all))
	for _, m := range all {
		status := Migration{ID: m.id}
		if at, ok := applied[m.id]; ok {
			status.Applied = true
			status.AppliedAt = at
		}
		result = append(result, status)
	}
	return result, nil
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionTable+` (
			id TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func appliedAt(ctx context.Context, db *sql.DB) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, applied_at FROM `+versionTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339, at)
		applied[id] = t
	}

	return applied, rows.Err()
}

func load() ([]migration, error) {
	entries, err := fs.ReadDir(sqlFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("reading sql directory: %w", err)
	}

	result := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(sqlFS, "sql/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		result = append(result, migration{
			id:      strings.TrimSuffix(entry.Name(), ".sql"),
			content: string(content),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].id < result[j].id
	})

	return result, nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(m.content) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing statement: %w\nSQL: %s", err, truncate(stmt, 100))
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+versionTable+` (id, applied_at) VALUES (?, ?)`,
		m.id, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// splitStatements drops full-line "--" comments and splits the remainder on
// semicolons that are not inside a quoted string.
func splitStatements(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	content = strings.Join(lines, "\n")

	var statements []string
	var current strings.Builder
	var quote rune

	for _, ch := range content {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == ';':
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
