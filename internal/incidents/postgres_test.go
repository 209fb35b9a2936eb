package incidents

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var incidentCols = []string{
	"id", "titulo", "descripcion", "tipo", "piso", "lugar_especifico", "foto", "nivel_riesgo",
	"tipo_trabajador_requerido", "estado", "veces_reportado", "creado_por", "creado_por_nombre",
	"asignado_a", "asignado_a_nombre", "asignado_a_especialidad", "asignado_por",
	"modificado_por", "cerrado_por",
	"fecha_creacion", "fecha_modificacion", "fecha_asignacion",
	"fecha_inicio", "fecha_resolucion", "fecha_cierre",
}

func incidentRow(id string, created time.Time) []driver.Value {
	return []driver.Value{
		id, "Fuga", "Charco", "infraestructura", "3", "pasillo", nil, "alto",
		"Electricista", StatePending, 1, "alumna@utec.edu.pe", "Alumna",
		nil, nil, nil, nil,
		nil, nil,
		created, nil, nil,
		nil, nil, nil,
	}
}

func TestPostgresGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	created := time.Now().UTC()
	rows := sqlmock.NewRows(incidentCols).AddRow(incidentRow("inc-1", created)...)
	mock.ExpectQuery("FROM incidentes WHERE id").
		WithArgs("inc-1").
		WillReturnRows(rows)

	store := NewPostgres(db)
	inc, err := store.Get(context.Background(), "inc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inc.ID != "inc-1" || inc.State != StatePending || inc.RiskLevel != "alto" {
		t.Fatalf("incident = %+v", inc)
	}
	if inc.AssignedTo != "" || inc.ModifiedAt != nil {
		t.Fatalf("nullable fields populated: %+v", inc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM incidentes WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(incidentCols))

	store := NewPostgres(db)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestPostgresPutNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE incidentes SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgres(db)
	inc := Incident{ID: "missing", Title: "x", State: StatePending, CreatedAt: time.Now()}
	if err := store.Put(context.Background(), inc); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Put = %v, want ErrNotFound", err)
	}
}

func TestPostgresList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(incidentCols).
		AddRow(incidentRow("inc-2", time.Now())...).
		AddRow(incidentRow("inc-1", time.Now().Add(-time.Hour))...)
	mock.ExpectQuery("FROM incidentes ORDER BY fecha_creacion DESC").
		WillReturnRows(rows)

	store := NewPostgres(db)
	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "inc-2" {
		t.Fatalf("list = %+v", list)
	}
}
