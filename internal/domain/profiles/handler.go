package profiles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pet-marketplace/internal/domain/media"
	"pet-marketplace/internal/middleware"
	"pet-marketplace/internal/ports/backend"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/profiles", summariesHandler(svc))
	r.Get("/profiles/{userID}/contact", contactHandler(svc))

	r.Get("/me/profile", getMyProfileHandler(svc))
	r.Put("/me/profile", updateMyProfileHandler(svc))
	r.Put("/me/profile/image", updateImageHandler(svc))
	r.Delete("/me/profile/image", removeImageHandler(svc))
}

// summariesHandler godoc
// @Summary Resumen de perfiles
// @Description Devuelve nombre, avatar y rating de varios perfiles en una sola consulta, indexados por id.
// @Tags profiles
// @Produce json
// @Param ids query string true "Lista CSV de ids"
// @Success 200 {object} map[string]Summary
// @Failure 500 {string} string "internal error"
// @Router /profiles [get]
func summariesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		out, err := svc.Summaries(r.Context(), ids)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// contactHandler godoc
// @Summary Contacto del dueño de un anuncio
// @Tags profiles
// @Produce json
// @Param userID path string true "ID del perfil"
// @Success 200 {object} Contact
// @Failure 404 {string} string "profile not found"
// @Router /profiles/{userID}/contact [get]
func contactHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Contact(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// getMyProfileHandler godoc
// @Summary Mi perfil
// @Description Devuelve el perfil de la identidad autenticada, o null si todavía no existe. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags profiles
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} Profile
// @Failure 401 {string} string "unauthorized"
// @Router /me/profile [get]
func getMyProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.Get(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// updateMyProfileHandler godoc
// @Summary Actualizar mi perfil
// @Description Upsert parcial del perfil: los campos ausentes no se tocan.
// @Tags profiles
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body UpdateInput true "Campos a actualizar"
// @Success 200 {object} Profile
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /me/profile [put]
func updateMyProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var in UpdateInput
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.UserID = claims.UserID

		p, err := svc.Update(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// updateImageHandler godoc
// @Summary Subir o reemplazar mi foto de perfil
// @Tags profiles
// @Accept multipart/form-data
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param image formData file true "Imagen"
// @Success 200 {object} Profile
// @Failure 400 {string} string "invalid image"
// @Failure 401 {string} string "unauthorized"
// @Router /me/profile/image [put]
func updateImageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(media.DefaultMaxBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["image"]
		if len(files) == 0 {
			http.Error(w, "image is required", http.StatusBadRequest)
			return
		}
		f, err := media.FromMultipart(files[0], media.DefaultMaxBytes)
		if err != nil {
			http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
			return
		}

		p, err := svc.UpdateImage(r.Context(), ImageInput{UserID: claims.UserID, File: f})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// removeImageHandler godoc
// @Summary Quitar mi foto de perfil
// @Tags profiles
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} Profile
// @Failure 401 {string} string "unauthorized"
// @Router /me/profile/image [delete]
func removeImageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.RemoveImage(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, backend.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrNotFound), errors.Is(err, backend.ErrNotFound):
		http.Error(w, "profile not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
