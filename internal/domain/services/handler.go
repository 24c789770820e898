package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pet-marketplace/internal/domain/media"
	"pet-marketplace/internal/middleware"
	"pet-marketplace/internal/ports/backend"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/services", func(sr chi.Router) {
		sr.Get("/", browseServicesHandler(svc))
		sr.Post("/", addServiceHandler(svc))
		sr.Get("/{serviceID}", getServiceHandler(svc))
		sr.Patch("/{serviceID}", updateServiceHandler(svc))
		sr.Delete("/{serviceID}", deleteServiceHandler(svc))
	})
	r.Get("/me/services", listMyServicesHandler(svc))
}

// browseServicesHandler godoc
// @Summary Listar servicios activos
// @Description search busca en título y descripción; max_price filtra por precio inicial.
// @Tags services
// @Produce json
// @Param category query string false "Categoría o all"
// @Param search query string false "Texto libre"
// @Param location query string false "Texto libre sobre la ubicación"
// @Param max_price query number false "Precio inicial máximo"
// @Success 200 {array} Listing
// @Failure 400 {string} string "max_price inválido"
// @Router /services [get]
func browseServicesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := Filter{
			Category: q.Get("category"),
			Search:   q.Get("search"),
			Location: q.Get("location"),
		}
		if v := strings.TrimSpace(q.Get("max_price")); v != "" {
			max, err := strconv.ParseFloat(v, 64)
			if err != nil || max < 0 {
				http.Error(w, "max_price must be a non-negative number", http.StatusBadRequest)
				return
			}
			f.MaxPrice = max
		}

		items, err := svc.Browse(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// getServiceHandler godoc
// @Summary Detalle de un servicio
// @Tags services
// @Produce json
// @Param serviceID path string true "ID del servicio"
// @Success 200 {object} Listing
// @Failure 404 {string} string "service not found"
// @Router /services/{serviceID} [get]
func getServiceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := svc.Get(r.Context(), chi.URLParam(r, "serviceID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// addServiceHandler godoc
// @Summary Publicar un servicio
// @Description Form multipart: `payload` con el JSON y opcionalmente un archivo en `image`.
// @Tags services
// @Accept multipart/form-data
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload formData string true "AddInput en JSON"
// @Param image formData file false "Imagen"
// @Success 201 {object} Listing
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /services [post]
func addServiceHandler(svc *Service) http.HandlerFunc {
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
		var in AddInput
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.ProviderID = claims.UserID

		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			f, err := media.FromMultipart(files[0], media.DefaultMaxBytes)
			if err != nil {
				http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
				return
			}
			in.Image = &f
		}

		l, err := svc.Add(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// updateServiceHandler godoc
// @Summary Editar un servicio
// @Tags services
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param serviceID path string true "ID del servicio"
// @Param payload body UpdateInput true "Campos a modificar"
// @Success 200 {object} Listing
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "service not found"
// @Router /services/{serviceID} [patch]
func updateServiceHandler(svc *Service) http.HandlerFunc {
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
		in.ID = chi.URLParam(r, "serviceID")
		in.ProviderID = claims.UserID

		l, err := svc.Update(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// deleteServiceHandler godoc
// @Summary Borrar un servicio
// @Tags services
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param serviceID path string true "ID del servicio"
// @Success 204 {string} string "no content"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "service not found"
// @Router /services/{serviceID} [delete]
func deleteServiceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := svc.Delete(r.Context(), DeleteInput{ID: chi.URLParam(r, "serviceID"), ProviderID: claims.UserID}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listMyServicesHandler godoc
// @Summary Mis servicios
// @Tags services
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} Listing
// @Failure 401 {string} string "unauthorized"
// @Router /me/services [get]
func listMyServicesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		items, err := svc.ListByProvider(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, media.ErrEmptyFile):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, backend.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "service not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
