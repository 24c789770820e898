package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pet-marketplace/internal/middleware"
	"pet-marketplace/internal/ports/backend"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/appointments", createAppointmentHandler(svc))
	r.Get("/me/appointments", myAppointmentsHandler(svc))
}

// createAppointmentHandler godoc
// @Summary Agendar una consulta veterinaria
// @Description El usuario autenticado queda como dueño; la cita queda scheduled.
// @Tags appointments
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body CreateInput true "Cita"
// @Success 201 {object} Appointment
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "veterinarian not found / pet not found"
// @Failure 409 {string} string "profile is not a veterinarian / cannot book an appointment with yourself"
// @Router /appointments [post]
func createAppointmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var in CreateInput
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.OwnerID = claims.UserID

		a, err := svc.Create(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// myAppointmentsHandler godoc
// @Summary Mis citas veterinarias
// @Description Sin role se usa el tipo de cuenta del perfil: veterinarian ve las citas que atiende, el resto las que agendó.
// @Tags appointments
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param role query string false "veterinarian o consumer"
// @Success 200 {array} Appointment
// @Failure 400 {string} string "invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /me/appointments [get]
func myAppointmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		role := Role(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
		if role == "" {
			var err error
			if role, err = svc.RoleFor(r.Context(), claims.UserID); err != nil {
				writeError(w, err)
				return
			}
		}

		items, err := svc.ListFor(r.Context(), claims.UserID, role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, backend.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrVetNotFound), errors.Is(err, ErrPetNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotVeterinarian), errors.Is(err, ErrOwnAppointment):
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
