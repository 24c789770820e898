package pets

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

const maxImages = 10

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/pets", func(pr chi.Router) {
		pr.Get("/", browsePetsHandler(svc))
		pr.Post("/", addPetHandler(svc))
		pr.Get("/{petID}", getPetHandler(svc))
		pr.Patch("/{petID}", updatePetHandler(svc))
		pr.Delete("/{petID}", deletePetHandler(svc))
	})

	r.Get("/vaccines", listVaccinesHandler(svc))
	r.Get("/me/pets", listMyPetsHandler(svc))
}

// browsePetsHandler godoc
// @Summary Listar mascotas disponibles
// @Description Anuncios con status available, más nuevos primero, con el resumen del vendedor. category=all equivale a no filtrar. search busca en nombre y raza.
// @Tags pets
// @Produce json
// @Param category query string false "dogs, cats, birds, fish, rabbits, hamsters, other o all"
// @Param search query string false "Texto libre sobre nombre y raza"
// @Param location query string false "Texto libre sobre la ubicación"
// @Success 200 {array} Pet
// @Failure 500 {string} string "internal error"
// @Router /pets [get]
func browsePetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := svc.Browse(r.Context(), Filter{
			Category: q.Get("category"),
			Search:   q.Get("search"),
			Location: q.Get("location"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// getPetHandler godoc
// @Summary Detalle de una mascota
// @Description Incluye los datos de contacto del vendedor.
// @Tags pets
// @Produce json
// @Param petID path string true "ID de la mascota"
// @Success 200 {object} Pet
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [get]
func getPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// addPetHandler godoc
// @Summary Publicar una mascota
// @Description Form multipart: `payload` con el JSON del anuncio y uno o más archivos en `images`. La primera imagen queda como portada. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags pets
// @Accept multipart/form-data
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload formData string true "AddInput en JSON"
// @Param images formData file true "Imágenes (una o más)"
// @Success 201 {object} Pet
// @Failure 400 {string} string "invalid json / images required / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "internal error"
// @Router /pets [post]
func addPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(maxImages * media.DefaultMaxBytes); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}

		var in AddInput
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.SellerID = claims.UserID

		headers := r.MultipartForm.File["images"]
		if len(headers) > maxImages {
			http.Error(w, "too many images", http.StatusBadRequest)
			return
		}
		for _, fh := range headers {
			f, err := media.FromMultipart(fh, media.DefaultMaxBytes)
			if err != nil {
				http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
				return
			}
			in.Images = append(in.Images, f)
		}

		p, err := svc.Add(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// updatePetHandler godoc
// @Summary Editar una mascota
// @Description PATCH parcial; solo el vendedor puede editar.
// @Tags pets
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Param payload body UpdateInput true "Campos a modificar"
// @Success 200 {object} Pet
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [patch]
func updatePetHandler(svc *Service) http.HandlerFunc {
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
		in.ID = chi.URLParam(r, "petID")
		in.SellerID = claims.UserID

		p, err := svc.Update(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// deletePetHandler godoc
// @Summary Borrar una mascota
// @Description Borra imágenes, vacunas y favoritos asociados y después el anuncio.
// @Tags pets
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param petID path string true "ID de la mascota"
// @Success 204 {string} string "no content"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID} [delete]
func deletePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := svc.Delete(r.Context(), DeleteInput{ID: chi.URLParam(r, "petID"), SellerID: claims.UserID})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listMyPetsHandler godoc
// @Summary Mis mascotas publicadas
// @Description Incluye imágenes y nombres de vacunas de cada anuncio.
// @Tags pets
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} Pet
// @Failure 401 {string} string "unauthorized"
// @Router /me/pets [get]
func listMyPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// listVaccinesHandler godoc
// @Summary Catálogo de vacunas
// @Tags pets
// @Produce json
// @Success 200 {array} Vaccine
// @Router /vaccines [get]
func listVaccinesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Vaccines(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNoImages), errors.Is(err, media.ErrEmptyFile):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, backend.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "pet not found", http.StatusNotFound)
	case errors.Is(err, backend.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado en los handlers de cada módulo a propósito.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
