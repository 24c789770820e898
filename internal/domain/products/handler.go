package products

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
	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", browseProductsHandler(svc))
		pr.Post("/", addProductHandler(svc))
		pr.Get("/{productID}", getProductHandler(svc))
		pr.Patch("/{productID}", updateProductHandler(svc))
		pr.Delete("/{productID}", deleteProductHandler(svc))
	})
	r.Get("/me/products", listMyProductsHandler(svc))
}

// browseProductsHandler godoc
// @Summary Listar productos disponibles
// @Tags products
// @Produce json
// @Param category query string false "food, toys, accessories, health, other o all"
// @Param search query string false "Texto libre sobre nombre y descripción"
// @Param max_price query number false "Precio máximo"
// @Success 200 {array} Product
// @Failure 400 {string} string "max_price inválido"
// @Router /products [get]
func browseProductsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := Filter{Category: q.Get("category"), Search: q.Get("search")}
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

// getProductHandler godoc
// @Summary Detalle de un producto
// @Tags products
// @Produce json
// @Param productID path string true "ID del producto"
// @Success 200 {object} Product
// @Failure 404 {string} string "product not found"
// @Router /products/{productID} [get]
func getProductHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), chi.URLParam(r, "productID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// addProductHandler godoc
// @Summary Publicar un producto
// @Description Form multipart: `payload` con el JSON y opcionalmente un archivo en `image`.
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload formData string true "AddInput en JSON"
// @Param image formData file false "Imagen"
// @Success 201 {object} Product
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /products [post]
func addProductHandler(svc *Service) http.HandlerFunc {
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
		in.SellerID = claims.UserID

		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			f, err := media.FromMultipart(files[0], media.DefaultMaxBytes)
			if err != nil {
				http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
				return
			}
			in.Image = &f
		}

		p, err := svc.Add(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// updateProductHandler godoc
// @Summary Editar un producto
// @Tags products
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param productID path string true "ID del producto"
// @Param payload body UpdateInput true "Campos a modificar"
// @Success 200 {object} Product
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "product not found"
// @Router /products/{productID} [patch]
func updateProductHandler(svc *Service) http.HandlerFunc {
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
		in.ID = chi.URLParam(r, "productID")
		in.SellerID = claims.UserID

		p, err := svc.Update(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// deleteProductHandler godoc
// @Summary Borrar un producto
// @Tags products
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param productID path string true "ID del producto"
// @Success 204 {string} string "no content"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "product not found"
// @Router /products/{productID} [delete]
func deleteProductHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := svc.Delete(r.Context(), DeleteInput{ID: chi.URLParam(r, "productID"), SellerID: claims.UserID}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listMyProductsHandler godoc
// @Summary Mis productos
// @Tags products
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} Product
// @Failure 401 {string} string "unauthorized"
// @Router /me/products [get]
func listMyProductsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		items, err := svc.ListBySeller(r.Context(), claims.UserID)
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
		http.Error(w, "product not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
