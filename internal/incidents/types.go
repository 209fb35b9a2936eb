// Package incidents implements the reporting lifecycle: students open
// incidents, admins triage and assign them to workers by specialty, and
// workers move them through to resolution.
package incidents

import (
	"errors"
	"time"
)

// Lifecycle states.
const (
	StatePending    = "pendiente"
	StateAssigned   = "asignado"
	StateInProgress = "en_proceso"
	StateResolved   = "resuelto"
	StateClosed     = "cerrado"
)

// Risk levels. Unknown values are coerced to empty.
const (
	RiskLow      = "bajo"
	RiskMedium   = "medio"
	RiskHigh     = "alto"
	RiskCritical = "critico"
)

// Incident is the full report record. Field names on the wire are the ones
// the mobile app expects.
type Incident struct {
	ID             string     `json:"incidente_id"`
	Title          string     `json:"titulo"`
	Description    string     `json:"descripcion"`
	Type           string     `json:"tipo"`
	Floor          string     `json:"piso"`
	Location       string     `json:"lugar_especifico"`
	Photo          string     `json:"foto,omitempty"`
	RiskLevel      string     `json:"Nivel_Riesgo,omitempty"`
	RequiredTrade  string     `json:"tipo_trabajador_requerido,omitempty"`
	State          string     `json:"estado"`
	TimesReported  int        `json:"veces_reportado"`
	CreatedBy      string     `json:"creado_por"`
	CreatedByName  string     `json:"creado_por_nombre,omitempty"`
	AssignedTo     string     `json:"asignado_a,omitempty"`
	AssignedToName string     `json:"asignado_a_nombre,omitempty"`
	AssignedTrade  string     `json:"asignado_a_especialidad,omitempty"`
	AssignedBy     string     `json:"asignado_por,omitempty"`
	ModifiedBy     string     `json:"modificado_por,omitempty"`
	ClosedBy       string     `json:"cerrado_por,omitempty"`
	CreatedAt      time.Time  `json:"fecha_creacion"`
	ModifiedAt     *time.Time `json:"fecha_modificacion,omitempty"`
	AssignedAt     *time.Time `json:"fecha_asignacion,omitempty"`
	StartedAt      *time.Time `json:"fecha_inicio,omitempty"`
	ResolvedAt     *time.Time `json:"fecha_resolucion,omitempty"`
	ClosedAt       *time.Time `json:"fecha_cierre,omitempty"`
}

// Sentinel errors mapped to HTTP statuses at the edge.
var (
	ErrNotFound         = errors.New("incidents: not found")
	ErrInvalidInput     = errors.New("incidents: invalid input")
	ErrInvalidState     = errors.New("incidents: invalid state")
	ErrPermissionDenied = errors.New("incidents: permission denied")
	ErrWorkerRequired   = errors.New("incidents: trabajador_email required")
	ErrNotAWorker       = errors.New("incidents: assignee is not a worker")
)

// ValidState reports whether s is a known lifecycle state.
func ValidState(s string) bool {
	switch s {
	case StatePending, StateAssigned, StateInProgress, StateResolved, StateClosed:
		return true
	}
	return false
}

// NormalizeRisk coerces unknown risk values to empty rather than rejecting
// the whole report.
func NormalizeRisk(r string) string {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r
	}
	return ""
}
