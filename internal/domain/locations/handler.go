package locations

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/locations/municipalities", municipalitiesHandler(svc))
}

// municipalitiesHandler godoc
// @Summary Municipios de Brasil
// @Description Lista "Nombre - UF" ordenada por UF y nombre. Se cachea 24h.
// @Tags locations
// @Produce json
// @Param search query string false "Filtra por texto"
// @Success 200 {array} Option
// @Failure 502 {string} string "locations upstream error"
// @Router /locations/municipalities [get]
func municipalitiesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Municipalities(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			http.Error(w, "locations upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(items)
	}
}
