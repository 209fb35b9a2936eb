// Command migrate applies database migrations and can seed demo accounts.
//
// Usage:
//
//	migrate up|down|status|seed
//
// The database comes from REPORTA_PG_DSN, migrations from ./migrations or
// REPORTA_MIGRATIONS_DIR.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"reporta.org/internal/migrate"
	"reporta.org/internal/users"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate up|down|status|seed")
		os.Exit(2)
	}
	cmd := os.Args[1]

	dsn := os.Getenv("REPORTA_PG_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "migrate: REPORTA_PG_DSN is not set")
		os.Exit(1)
	}
	dir := os.Getenv("REPORTA_MIGRATIONS_DIR")
	if dir == "" {
		dir = "./migrations"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(db, dir)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "status":
		var lines []string
		lines, err = mgr.Status(ctx)
		for _, l := range lines {
			fmt.Println(l)
		}
	case "seed":
		err = seed(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "migrate: unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

// seed creates one demo account per role. Existing accounts are left alone
// so the command is safe to rerun.
func seed(ctx context.Context, db *sql.DB) error {
	svc := users.NewService(users.NewPostgres(db))
	accounts := []users.RegisterInput{
		{Email: "demo-alumna@utec.edu.pe", Name: "Demo Alumna", Password: "demo-password"},
		{Email: "demo-jefa@admin.utec.edu.pe", Name: "Demo Jefa", Password: "demo-password"},
		{Email: "demo-tecnico@gmail.com", Name: "Demo Tecnico", Password: "demo-password", Specialty: "TI"},
	}
	for _, in := range accounts {
		u, err := svc.Register(ctx, in)
		if errors.Is(err, users.ErrAlreadyExists) {
			fmt.Printf("%s exists, skipped\n", in.Email)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", in.Email, err)
		}
		fmt.Printf("%s created (%s)\n", u.Email, u.Role)
	}
	return nil
}
