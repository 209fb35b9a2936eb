package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres stores accounts in the users table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, u User) error {
	const q = `
		INSERT INTO users (id, email, nombre, tipo, especialidad, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, q,
		u.ID, NormalizeEmail(u.Email), u.Name, u.Role, nullString(u.Specialty), u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (User, error) {
	const q = `
		SELECT id, email, nombre, tipo, COALESCE(especialidad, ''), password_hash, created_at
		FROM users WHERE email = $1`
	var u User
	err := s.db.QueryRowContext(ctx, q, NormalizeEmail(email)).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Specialty, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: select: %w", err)
	}
	return u, nil
}

func (s *Postgres) List(ctx context.Context, role string) ([]User, error) {
	q := `
		SELECT id, email, nombre, tipo, COALESCE(especialidad, ''), password_hash, created_at
		FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE tipo = $1`
		args = append(args, role)
	}
	q += ` ORDER BY email`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Specialty, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
