package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pet-marketplace/internal/platform/metrics"
	"pet-marketplace/internal/router"
)

type caller struct {
	token   string
	debugID string
}

func newServer(t *testing.T, opts router.Options) *httptest.Server {
	t.Helper()
	app := router.NewRouter(opts)
	ts := httptest.NewServer(app)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return ts
}

func TestHTTP_EndToEnd_SellerFlow(t *testing.T) {
	ts := newServer(t, router.Options{})

	// 1) Registro + login
	{
		st, body := doReq(t, ts.URL, "POST", "/auth/signup", caller{}, map[string]any{
			"email":     "ana@example.com",
			"password":  "secret1",
			"full_name": "Ana",
			"user_type": "seller",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 signup, got %d body=%s", st, string(body))
		}
	}
	var sess struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/auth/signin", caller{}, map[string]any{
			"email":    "ana@example.com",
			"password": "secret1",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 signin, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &sess)
		if sess.AccessToken == "" {
			t.Fatalf("signin: missing token body=%s", string(body))
		}
	}
	ana := caller{token: sess.AccessToken}

	// 2) Perfil creado en el registro
	{
		st, body := doReq(t, ts.URL, "GET", "/me/profile", ana, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"full_name":"Ana"`) {
			t.Fatalf("expected own profile, got %d body=%s", st, string(body))
		}
	}

	// 3) Publicar mascota (multipart)
	petID := createPet(t, ts.URL, ana, map[string]any{
		"name":     "Rex",
		"category": "dogs",
		"location": "Natal - RN",
	})

	// 4) Aparece en el listado público con el dueño
	{
		st, body := doReq(t, ts.URL, "GET", "/pets?category=all", caller{}, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 browse, got %d", st)
		}
		var items []struct {
			ID    string `json:"id"`
			Owner *struct {
				FullName string `json:"full_name"`
			} `json:"owner"`
		}
		_ = json.Unmarshal(body, &items)
		if len(items) != 1 || items[0].ID != petID || items[0].Owner == nil || items[0].Owner.FullName != "Ana" {
			t.Fatalf("unexpected browse body=%s", string(body))
		}
	}

	// 5) Mis mascotas traen las imágenes
	{
		st, body := doReq(t, ts.URL, "GET", "/me/pets", ana, nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"position":0`) {
			t.Fatalf("expected own pets with images, got %d body=%s", st, string(body))
		}
	}

	// 6) Favorito: toggle y agregado
	{
		st, body := doReq(t, ts.URL, "POST", "/me/favorites/toggle", ana, map[string]any{
			"item_id":   petID,
			"item_type": "pet",
		})
		if st != http.StatusOK || !strings.Contains(string(body), `"favorited":true`) {
			t.Fatalf("expected favorited, got %d body=%s", st, string(body))
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/me/favorites", ana, nil)
		var agg struct {
			Pets []struct {
				ID string `json:"id"`
			} `json:"pets"`
		}
		_ = json.Unmarshal(body, &agg)
		if st != http.StatusOK || len(agg.Pets) != 1 || agg.Pets[0].ID != petID {
			t.Fatalf("expected favorite pet, got %d body=%s", st, string(body))
		}
	}

	// 7) Borrar la mascota limpia el favorito
	{
		st, body := doReq(t, ts.URL, "DELETE", "/pets/"+petID, ana, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete, got %d body=%s", st, string(body))
		}
		st, body = doReq(t, ts.URL, "GET", "/me/favorites/ids", ana, nil)
		if st != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
			t.Fatalf("expected no favorites, got %d body=%s", st, string(body))
		}
	}

	// 8) Logout: el token deja de valer
	{
		st, _ := doReq(t, ts.URL, "POST", "/auth/signout", ana, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 signout, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/me/profile", ana, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 after signout, got %d", st)
		}
	}
}

func TestHTTP_Unauthenticated(t *testing.T) {
	ts := newServer(t, router.Options{})

	for _, path := range []string{"/me/profile", "/me/pets", "/me/favorites", "/me/cart", "/me/bookings", "/me/appointments"} {
		st, _ := doReq(t, ts.URL, "GET", path, caller{}, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, st)
		}
	}

	// sin DevMode el header de debug se ignora
	st, _ := doReq(t, ts.URL, "GET", "/me/cart", caller{debugID: "u1"}, nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 with debug header outside dev mode, got %d", st)
	}
}

func TestHTTP_DevModeHeader(t *testing.T) {
	ts := newServer(t, router.Options{DevMode: true})

	st, body := doReq(t, ts.URL, "GET", "/me/cart", caller{debugID: "u1"}, nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"user_id":"u1"`) {
		t.Fatalf("expected empty cart for u1, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "POST", "/profiles/u2/reviews", caller{debugID: "u1"}, map[string]any{"rating": 9})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid rating, got %d body=%s", st, string(body))
	}
}

func TestHTTP_AppointmentsByRole(t *testing.T) {
	ts := newServer(t, router.Options{DevMode: true})

	signUp := func(email, name, userType string) string {
		t.Helper()
		st, body := doReq(t, ts.URL, "POST", "/auth/signup", caller{}, map[string]any{
			"email": email, "password": "secret1", "full_name": name, "user_type": userType,
		})
		if st != http.StatusCreated {
			t.Fatalf("signup %s: got %d body=%s", email, st, string(body))
		}
		var u struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &u)
		return u.ID
	}
	vetID := signUp("vet@example.com", "Dra. Clara", "veterinarian")
	sellerID := signUp("ana@example.com", "Ana", "seller")
	ownerID := signUp("joao@example.com", "João", "consumer")

	petID := createPet(t, ts.URL, caller{debugID: sellerID}, map[string]any{
		"name": "Rex", "category": "dogs", "location": "Natal - RN",
	})

	st, body := doReq(t, ts.URL, "POST", "/appointments", caller{debugID: ownerID}, map[string]any{
		"veterinarian_id": vetID, "pet_id": petID, "date": "2025-07-10", "time": "09:30",
	})
	if st != http.StatusCreated || !strings.Contains(string(body), `"status":"scheduled"`) {
		t.Fatalf("expected 201 appointment, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "POST", "/appointments", caller{debugID: ownerID}, map[string]any{
		"veterinarian_id": sellerID, "pet_id": petID, "date": "2025-07-10", "time": "09:30",
	})
	if st != http.StatusConflict {
		t.Fatalf("expected 409 for non veterinarian, got %d body=%s", st, string(body))
	}

	// sin role, el veterinario ve las citas que atiende
	st, body = doReq(t, ts.URL, "GET", "/me/appointments", caller{debugID: vetID}, nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"owner":{"full_name":"João"`) {
		t.Fatalf("expected vet view with owner, got %d body=%s", st, string(body))
	}
	st, body = doReq(t, ts.URL, "GET", "/me/appointments", caller{debugID: ownerID}, nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"veterinarian":{"full_name":"Dra. Clara"`) {
		t.Fatalf("expected owner view with veterinarian, got %d body=%s", st, string(body))
	}
	st, _ = doReq(t, ts.URL, "GET", "/me/appointments?role=admin", caller{debugID: ownerID}, nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", st)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts := newServer(t, router.Options{Metrics: metrics.NewManager("pet-marketplace")})

	st, body := doReq(t, ts.URL, "GET", "/health", caller{}, nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected ok, got %d body=%s", st, string(body))
	}

	_, _ = doReq(t, ts.URL, "GET", "/vaccines", caller{}, nil)
	st, body = doReq(t, ts.URL, "GET", "/metrics", caller{}, nil)
	if st != http.StatusOK || !strings.Contains(string(body), "query_cache_misses_total") {
		t.Fatalf("expected cache metrics, got %d", st)
	}

	st, _ = doReq(t, ts.URL, "GET", "/locations/municipalities", caller{}, nil)
	if st != http.StatusBadGateway {
		t.Fatalf("expected 502 without locations provider, got %d", st)
	}
}

func createPet(t *testing.T, baseURL string, c caller, payload map[string]any) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	raw, _ := json.Marshal(payload)
	if err := mw.WriteField("payload", string(raw)); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	fw, err := mw.CreateFormFile("images", "rex.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("\xff\xd8\xff\xe0 fake jpeg"))
	_ = mw.Close()

	req, err := http.NewRequest("POST", baseURL+"/pets", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	authorize(req, c)

	st, body := send(t, req)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create pet, got %d body=%s", st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("create pet: missing id body=%s", string(body))
	}
	return resp.ID
}

func doReq(t *testing.T, baseURL, method, path string, c caller, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req, c)
	return send(t, req)
}

func authorize(req *http.Request, c caller) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.debugID != "" {
		req.Header.Set("X-Debug-User-ID", c.debugID)
	}
}

func send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
