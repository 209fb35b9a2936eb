package incidents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Postgres stores incident records in the incidentes table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const incidentColumns = `
	id, titulo, descripcion, tipo, piso, lugar_especifico, foto, nivel_riesgo,
	tipo_trabajador_requerido, estado, veces_reportado, creado_por, creado_por_nombre,
	asignado_a, asignado_a_nombre, asignado_a_especialidad, asignado_por,
	modificado_por, cerrado_por,
	fecha_creacion, fecha_modificacion, fecha_asignacion,
	fecha_inicio, fecha_resolucion, fecha_cierre`

func (s *Postgres) Create(ctx context.Context, inc Incident) error {
	const q = `
		INSERT INTO incidentes (` + incidentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err := s.db.ExecContext(ctx, q, args(inc)...)
	if err != nil {
		return fmt.Errorf("incidents: insert: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (Incident, error) {
	const q = `SELECT ` + incidentColumns + ` FROM incidentes WHERE id = $1`
	inc, err := scanIncident(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Incident{}, ErrNotFound
	}
	if err != nil {
		return Incident{}, fmt.Errorf("incidents: select: %w", err)
	}
	return inc, nil
}

// Put replaces the full record.
func (s *Postgres) Put(ctx context.Context, inc Incident) error {
	const q = `
		UPDATE incidentes SET
			titulo = $2, descripcion = $3, tipo = $4, piso = $5,
			lugar_especifico = $6, foto = $7, nivel_riesgo = $8,
			tipo_trabajador_requerido = $9, estado = $10, veces_reportado = $11,
			creado_por = $12, creado_por_nombre = $13,
			asignado_a = $14, asignado_a_nombre = $15,
			asignado_a_especialidad = $16, asignado_por = $17,
			modificado_por = $18, cerrado_por = $19,
			fecha_creacion = $20, fecha_modificacion = $21, fecha_asignacion = $22,
			fecha_inicio = $23, fecha_resolucion = $24, fecha_cierre = $25
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, args(inc)...)
	if err != nil {
		return fmt.Errorf("incidents: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("incidents: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]Incident, error) {
	const q = `SELECT ` + incidentColumns + ` FROM incidentes ORDER BY fecha_creacion DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("incidents: list: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("incidents: scan: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("incidents: rows: %w", err)
	}
	return out, nil
}

func args(inc Incident) []any {
	return []any{
		inc.ID, inc.Title, inc.Description, inc.Type, inc.Floor,
		inc.Location, nullStr(inc.Photo), nullStr(inc.RiskLevel),
		nullStr(inc.RequiredTrade), inc.State,
		inc.TimesReported, inc.CreatedBy, nullStr(inc.CreatedByName),
		nullStr(inc.AssignedTo), nullStr(inc.AssignedToName),
		nullStr(inc.AssignedTrade), nullStr(inc.AssignedBy),
		nullStr(inc.ModifiedBy), nullStr(inc.ClosedBy),
		inc.CreatedAt, inc.ModifiedAt, inc.AssignedAt,
		inc.StartedAt, inc.ResolvedAt, inc.ClosedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (Incident, error) {
	var (
		inc                                     Incident
		photo, risk, requiredTrade              sql.NullString
		createdByName                           sql.NullString
		assignedTo, assignedName, assignedTrade sql.NullString
		assignedBy, modifiedBy, closedBy        sql.NullString
		modifiedAt, assignedAt, startedAt       sql.NullTime
		resolvedAt, closedAt                    sql.NullTime
	)
	err := row.Scan(
		&inc.ID, &inc.Title, &inc.Description, &inc.Type, &inc.Floor,
		&inc.Location, &photo, &risk,
		&requiredTrade, &inc.State,
		&inc.TimesReported, &inc.CreatedBy, &createdByName,
		&assignedTo, &assignedName, &assignedTrade, &assignedBy,
		&modifiedBy, &closedBy,
		&inc.CreatedAt, &modifiedAt, &assignedAt,
		&startedAt, &resolvedAt, &closedAt,
	)
	if err != nil {
		return Incident{}, err
	}
	inc.Photo = photo.String
	inc.RiskLevel = risk.String
	inc.RequiredTrade = requiredTrade.String
	inc.CreatedByName = createdByName.String
	inc.AssignedTo = assignedTo.String
	inc.AssignedToName = assignedName.String
	inc.AssignedTrade = assignedTrade.String
	inc.AssignedBy = assignedBy.String
	inc.ModifiedBy = modifiedBy.String
	inc.ClosedBy = closedBy.String
	inc.ModifiedAt = timePtr(modifiedAt)
	inc.AssignedAt = timePtr(assignedAt)
	inc.StartedAt = timePtr(startedAt)
	inc.ResolvedAt = timePtr(resolvedAt)
	inc.ClosedAt = timePtr(closedAt)
	return inc, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
