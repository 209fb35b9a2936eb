package httpapi

import (
	"errors"
	"net/http"

	"reporta.org/internal/audit"
	"reporta.org/internal/users"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
		return
	}

	u, err := a.users.Register(r.Context(), in)
	if err != nil {
		mapError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "user.registered", map[string]any{
		"email": u.Email,
		"tipo":  u.Role,
	})
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  users.User `json:"user"`
	Token string     `json:"token"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "JSON invalido")
		return
	}

	u, token, err := a.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, users.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "Credenciales invalidas")
			return
		}
		mapError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "user.login", map[string]any{"email": u.Email})
	writeJSON(w, http.StatusOK, loginResponse{User: u, Token: token})
}
