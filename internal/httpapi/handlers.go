// Package httpapi exposes the incident-reporting service over HTTP and a
// WebSocket push channel.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"reporta.org/internal/audit"
	"reporta.org/internal/incidents"
	"reporta.org/internal/users"
)

const maxDecodeBytes = 1 << 20 // 1 MiB

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{
		Error:     code,
		Message:   message,
		RequestID: audit.RequestID(r.Context()),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxDecodeBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: trailing data")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Metodo no permitido")
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.readyCheck != nil {
		if err := a.readyCheck(r.Context()); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "reporta-api",
		"version": a.version,
	})
}

// mapError converts domain sentinels into HTTP responses with the Spanish
// client messages the mobile app shows verbatim.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, users.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "No autenticado. Header X-User-Email requerido.")
	case errors.Is(err, users.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Usuario no encontrado")
	case errors.Is(err, users.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "already_exists", "El usuario ya existe")
	case errors.Is(err, users.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "bad_request", trimPrefix(err))
	case errors.Is(err, incidents.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission_denied", "No tienes permiso para esta operacion")
	case errors.Is(err, incidents.ErrWorkerRequired):
		writeError(w, r, http.StatusBadRequest, "bad_request", "trabajador_email es requerido")
	case errors.Is(err, incidents.ErrNotAWorker):
		writeError(w, r, http.StatusNotFound, "not_found", "Trabajador no encontrado")
	case errors.Is(err, incidents.ErrInvalidState):
		writeError(w, r, http.StatusBadRequest, "bad_request", trimPrefix(err))
	case errors.Is(err, incidents.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "bad_request", trimPrefix(err))
	case errors.Is(err, incidents.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Incidente no encontrado")
	default:
		writeError(w, r, http.StatusInternalServerError, "store_failure", "Error interno")
	}
}

// trimPrefix strips the package prefix from a sentinel-wrapped error so the
// client message stays readable.
func trimPrefix(err error) string {
	msg := err.Error()
	for _, p := range []string{"users: ", "incidents: "} {
		msg = strings.ReplaceAll(msg, p, "")
	}
	return msg
}
