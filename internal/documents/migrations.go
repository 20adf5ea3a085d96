package documents

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migration is one versioned schema change.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded schema changes ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".up.sql"), SQL: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns the versions it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, migrations)
}

func (s *Store) apply(ctx context.Context, migrations []Migration) ([]string, error) {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return nil, wrap("migrate", fmt.Errorf("create migrations table: %w", err))
	}

	var applied []string
	for _, m := range migrations {
		var count int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, m.Version).Scan(&count)
		if err != nil {
			return applied, wrap("migrate", fmt.Errorf("check migration %s: %w", m.Version, err))
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, wrap("migrate", fmt.Errorf("begin tx for %s: %w", m.Version, err))
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return applied, wrap("migrate", fmt.Errorf("execute migration %s: %w", m.Version, err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			_ = tx.Rollback()
			return applied, wrap("migrate", fmt.Errorf("record migration %s: %w", m.Version, err))
		}
		if err := tx.Commit(); err != nil {
			return applied, wrap("migrate", fmt.Errorf("commit migration %s: %w", m.Version, err))
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}
