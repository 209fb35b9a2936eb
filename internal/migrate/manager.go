// Package migrate applies versioned SQL migrations from a directory of
// NNNN_name.up.sql / NNNN_name.down.sql pairs, with bookkeeping in a
// schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Migration is one up/down pair discovered on disk.
type Migration struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// Manager loads and applies migrations.
type Manager struct {
	db  *sql.DB
	dir string
}

// NewManager wraps a database handle and a migrations directory.
func NewManager(db *sql.DB, dir string) *Manager {
	return &Manager{db: db, dir: dir}
}

func (m *Manager) ensureTable(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)`
	if _, err := m.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate: ensure table: %w", err)
	}
	return nil
}

// Load discovers migrations sorted by version.
func (m *Manager) Load() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		name := e.Name()
		var down bool
		var base string
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			base = strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			base = strings.TrimSuffix(name, ".down.sql")
			down = true
		default:
			continue
		}
		version, rest, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migrate: bad migration filename %q", name)
		}
		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: rest}
			byVersion[version] = mig
		}
		if down {
			mig.DownPath = filepath.Join(m.dir, name)
		} else {
			mig.UpPath = filepath.Join(m.dir, name)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.UpPath == "" {
			return nil, fmt.Errorf("migrate: version %s has no up file", mig.Version)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Manager) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrate: query applied: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("migrate: scan: %w", err)
		}
		out[v] = true
	}
	return out, rows.Err()
}

// Up applies every pending migration in order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	migs, err := m.Load()
	if err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range migs {
		if done[mig.Version] {
			continue
		}
		if err := m.runFile(ctx, mig.UpPath); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", mig.Version, err)
		}
		_, err := m.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			mig.Version, mig.Name, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("migrate: record %s: %w", mig.Version, err)
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	migs, err := m.Load()
	if err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for i := len(migs) - 1; i >= 0; i-- {
		mig := migs[i]
		if !done[mig.Version] {
			continue
		}
		if mig.DownPath == "" {
			return fmt.Errorf("migrate: version %s has no down file", mig.Version)
		}
		if err := m.runFile(ctx, mig.DownPath); err != nil {
			return fmt.Errorf("migrate: rollback %s: %w", mig.Version, err)
		}
		if _, err := m.db.ExecContext(ctx,
			`DELETE FROM schema_migrations WHERE version = $1`, mig.Version); err != nil {
			return fmt.Errorf("migrate: unrecord %s: %w", mig.Version, err)
		}
		return nil
	}
	return nil
}

// Status reports each migration and whether it has been applied.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	migs, err := m.Load()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(migs))
	for _, mig := range migs {
		state := "pending"
		if done[mig.Version] {
			state = "applied"
		}
		out = append(out, fmt.Sprintf("%s %s %s", mig.Version, mig.Name, state))
	}
	return out, nil
}

func (m *Manager) runFile(ctx context.Context, path string) error {
	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, string(sqlBytes))
	return err
}
