// Package users manages accounts for the incident-reporting service:
// registration, login, identity resolution and role assignment.
//
// Roles are derived from the email domain. Addresses under admin.utec.edu.pe
// are administrators, other utec.edu.pe addresses are students, and anything
// else is a maintenance worker.
package users

import (
	"strings"
	"time"
)

// Roles recognized by the service.
const (
	RoleStudent = "estudiante"
	RoleWorker  = "trabajador"
	RoleAdmin   = "admin"
)

// Specialties a worker may register with.
var Specialties = []string{
	"TI",
	"Servicio de Limpieza",
	"Seguridad",
	"Electricista",
}

// User is an account record. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"nombre"`
	Role         string    `json:"tipo"`
	Specialty    string    `json:"especialidad,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"fecha_registro"`
}

// RoleForEmail derives the account role from the address domain.
func RoleForEmail(email string) string {
	addr := strings.ToLower(strings.TrimSpace(email))
	switch {
	case strings.HasSuffix(addr, "@admin.utec.edu.pe"):
		return RoleAdmin
	case strings.HasSuffix(addr, "@utec.edu.pe"):
		return RoleStudent
	default:
		return RoleWorker
	}
}

// ValidSpecialty reports whether s is one of the registered worker trades.
func ValidSpecialty(s string) bool {
	for _, v := range Specialties {
		if v == s {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
