package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrConnNotFound indicates an unknown connection handle.
var ErrConnNotFound = errors.New("notify: connection not found")

// Connection maps a live channel handle to the identity behind it.
type Connection struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Directory tracks which identities are reachable on which connections.
// Entries may be stale; the notifier prunes them when a send confirms the
// peer is gone.
type Directory interface {
	Add(ctx context.Context, c Connection) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]Connection, error)
}

// MemoryDirectory is a mutex-guarded directory for single-process runs.
type MemoryDirectory struct {
	mu   sync.RWMutex
	byID map[string]Connection
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{byID: make(map[string]Connection)}
}

func (d *MemoryDirectory) Add(_ context.Context, c Connection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[c.ID] = c
	return nil
}

func (d *MemoryDirectory) Remove(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; !ok {
		return ErrConnNotFound
	}
	delete(d.byID, id)
	return nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]Connection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Connection, 0, len(d.byID))
	for _, c := range d.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PgDirectory persists connection handles so a restarted process can prune
// leftovers instead of pushing into the void.
type PgDirectory struct {
	db *sql.DB
}

// NewPgDirectory wraps an open database handle.
func NewPgDirectory(db *sql.DB) *PgDirectory {
	return &PgDirectory{db: db}
}

func (d *PgDirectory) Add(ctx context.Context, c Connection) error {
	const q = `
		INSERT INTO connections (id, email, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`
	if _, err := d.db.ExecContext(ctx, q, c.ID, c.Email, c.CreatedAt); err != nil {
		return fmt.Errorf("notify: add connection: %w", err)
	}
	return nil
}

func (d *PgDirectory) Remove(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notify: remove connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notify: rows affected: %w", err)
	}
	if n == 0 {
		return ErrConnNotFound
	}
	return nil
}

func (d *PgDirectory) List(ctx context.Context) ([]Connection, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, email, created_at FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("notify: list connections: %w", err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan connection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: rows: %w", err)
	}
	return out, nil
}
