package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"pet-marketplace/internal/ports/backend"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, m *Manager) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/signup", signUpHandler(m))
		ar.Post("/signin", signInHandler(m))
		ar.Post("/signout", signOutHandler(m))
		ar.Get("/session", sessionHandler(m))
		ar.Post("/verify", verifyHandler(m))
	})
}

// signUpHandler godoc
// @Summary Registro
// @Description Crea la identidad y el perfil. El backend envía el email de verificación.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body SignUpInput true "Datos de registro"
// @Success 201 {object} backend.User
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 409 {string} string "user already registered"
// @Router /auth/signup [post]
func signUpHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SignUpInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		u, err := m.SignUp(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// signInHandler godoc
// @Summary Iniciar sesión
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body Credentials true "Email y contraseña"
// @Success 200 {object} backend.Session
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "invalid login credentials"
// @Failure 403 {string} string "email not confirmed"
// @Router /auth/signin [post]
func signInHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in Credentials
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		sess, err := m.SignIn(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// signOutHandler godoc
// @Summary Cerrar sesión
// @Tags auth
// @Param Authorization header string true "Bearer token"
// @Success 204 {string} string "no content"
// @Failure 401 {string} string "no active session"
// @Router /auth/signout [post]
func signOutHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.SignOut(r.Context(), backend.AccessToken(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// sessionHandler godoc
// @Summary Sesión actual
// @Description Si la sesión venció se cierra y responde 401.
// @Tags auth
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} backend.Session
// @Failure 401 {string} string "no active session / session expired"
// @Router /auth/session [get]
func sessionHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Current(r.Context(), backend.AccessToken(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

type verifyRequest struct {
	TokenHash string `json:"token_hash"`
	Type      string `json:"type"`
}

// verifyHandler godoc
// @Summary Confirmar email
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body verifyRequest true "token_hash y type del link de confirmación"
// @Success 200 {object} backend.Session
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "invalid or expired token"
// @Router /auth/verify [post]
func verifyHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		sess, err := m.VerifyEmail(r.Context(), in.TokenHash, in.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionExpired):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, backend.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, backend.ErrEmailNotConfirmed):
		http.Error(w, "email not confirmed", http.StatusForbidden)
	case errors.Is(err, backend.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
