package httpapi

import (
	"net/http"
	"strings"

	"reporta.org/internal/incidents"
)

func (a *API) handleIncidentsCollection(w http.ResponseWriter, r *http.Request) {
	actor, err := a.currentUser(r)
	if err != nil {
		mapError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var in incidents.CreateInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
			return
		}
		inc, err := a.incidents.Create(r.Context(), actor, in)
		if err != nil {
			mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inc)

	case http.MethodGet:
		list, err := a.incidents.List(r.Context(), actor)
		if err != nil {
			mapError(w, r, err)
			return
		}
		if list == nil {
			list = []incidents.Incident{}
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleIncidentByID routes /incidentes/{id}, /incidentes/{id}/asignar and
// /incidentes/{id}/estado.
func (a *API) handleIncidentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/incidentes/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		writeError(w, r, http.StatusNotFound, "not_found", "Ruta no encontrada")
		return
	}
	id := parts[0]

	actor, err := a.currentUser(r)
	if err != nil {
		mapError(w, r, err)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			inc, err := a.incidents.Get(r.Context(), id)
			if err != nil {
				mapError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, inc)
		case http.MethodPut:
			var in incidents.EditInput
			if err := decodeJSON(w, r, &in); err != nil {
				writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
				return
			}
			inc, err := a.incidents.AdminEdit(r.Context(), actor, id, in)
			if err != nil {
				mapError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, inc)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
		}
		return
	}

	switch parts[1] {
	case "asignar":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		var in struct {
			WorkerEmail string `json:"trabajador_email"`
		}
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
			return
		}
		inc, err := a.incidents.Assign(r.Context(), actor, id, in.WorkerEmail)
		if err != nil {
			mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)

	case "estado":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		var in struct {
			State string `json:"estado"`
		}
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
			return
		}
		inc, err := a.incidents.WorkerUpdateState(r.Context(), actor, id, in.State)
		if err != nil {
			mapError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)

	default:
		writeError(w, r, http.StatusNotFound, "not_found", "Ruta no encontrada")
	}
}
