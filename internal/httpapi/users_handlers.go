package httpapi

import (
	"net/http"

	"reporta.org/internal/users"
)

// handleListUsers is admin-only. The ?tipo= filter narrows by role, which is
// how the app loads the worker roster for the assignment screen.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	actor, err := a.currentUser(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	if actor.Role != users.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "permission_denied", "Solo administradores pueden listar usuarios")
		return
	}

	list, err := a.users.List(r.Context(), r.URL.Query().Get("tipo"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
