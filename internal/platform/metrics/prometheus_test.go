package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestManager_CacheObserver(t *testing.T) {
	m := NewManager("pet-marketplace")

	m.Hit("pets")
	m.Hit("pets")
	m.Miss("pets")
	m.FetchFailed("vaccines")
	m.Invalidated("userPets", 3)
	m.Fetch("pets", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("pets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("pets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheFetchFailures.WithLabelValues("vaccines")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("userPets")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CacheFetchLatency))
}

func TestManager_MiddlewareUsesRoutePattern(t *testing.T) {
	m := NewManager("pet-marketplace")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/pets/{petID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pets/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/pets/{petID}", "404")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pet_marketplace_http_requests_total")
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "pet_marketplace", namespace("Pet-Marketplace"))
	assert.Equal(t, "app", namespace(" "))
}
