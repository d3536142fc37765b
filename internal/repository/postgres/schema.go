package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/lib/pq"
)

//go:embed schema/*.sql
var MigrationFiles embed.FS

// Tables lists the tables the schema creates.
var Tables = []string{"benchmarks", "employees", "upload_audits"}

// Migration is one schema file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the .sql files of fsys in name order. Empty files are
// skipped.
func Migrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EmbeddedMigrations returns the schema shipped with the binary.
func EmbeddedMigrations() ([]Migration, error) {
	sub, err := fs.Sub(MigrationFiles, "schema")
	if err != nil {
		return nil, err
	}
	return Migrations(sub)
}

// Apply runs each migration in its own transaction and stops at the first
// failure. The files are idempotent, so re-running is safe.
func Apply(ctx context.Context, db *sql.DB, migrations []Migration, onApplied func(name string)) error {
	for _, m := range migrations {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%s: begin: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s: commit: %w", m.Name, err)
		}
		if onApplied != nil {
			onApplied(m.Name)
		}
	}
	return nil
}

// ListTables returns which of Tables exist in the public schema.
func ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename = ANY($1)
		ORDER BY tablename
	`, pq.Array(Tables))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
