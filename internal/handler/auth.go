package handler

import (
	"net/http"

	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
)

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (req credentialsRequest) valid() bool {
	return req.Username != nil && req.Password != nil && *req.Username != "" && *req.Password != ""
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if _, err := h.engine.Signup(r.Context(), *req.Username, *req.Password); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": appI18n.T(r.Context(), "SignupSuccess"),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	p, err := h.engine.Authenticate(r.Context(), *req.Username, *req.Password)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  appI18n.T(r.Context(), "LoginSuccess"),
		"username": p.Username,
	})
}
