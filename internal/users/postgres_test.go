package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "nombre", "tipo", "especialidad", "password_hash", "created_at"}).
		AddRow("u1", "tecnico@gmail.com", "Tecnico", RoleWorker, "TI", "hash", now)
	mock.ExpectQuery("SELECT id, email, nombre").
		WithArgs("tecnico@gmail.com").
		WillReturnRows(rows)

	store := NewPostgres(db)
	u, err := store.FindByEmail(context.Background(), "Tecnico@Gmail.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleWorker || u.Specialty != "TI" {
		t.Fatalf("user = %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresFindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, email, nombre").
		WithArgs("nadie@utec.edu.pe").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "nombre", "tipo", "especialidad", "password_hash", "created_at"}))

	store := NewPostgres(db)
	if _, err := store.FindByEmail(context.Background(), "nadie@utec.edu.pe"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail = %v, want ErrNotFound", err)
	}
}

func TestPostgresListFiltersByRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "nombre", "tipo", "especialidad", "password_hash", "created_at"}).
		AddRow("u1", "a@gmail.com", "A", RoleWorker, "TI", "h", time.Now()).
		AddRow("u2", "b@gmail.com", "B", RoleWorker, "Seguridad", "h", time.Now())
	mock.ExpectQuery("SELECT id, email, nombre").
		WithArgs(RoleWorker).
		WillReturnRows(rows)

	store := NewPostgres(db)
	list, err := store.List(context.Background(), RoleWorker)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d users", len(list))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "users_email_key"`))

	store := NewPostgres(db)
	u := User{ID: "u1", Email: "a@gmail.com", Name: "A", Role: RoleWorker, Specialty: "TI", PasswordHash: "h", CreatedAt: time.Now()}
	if err := store.Create(context.Background(), u); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Create duplicate = %v, want ErrAlreadyExists", err)
	}
}
