package middleware

import (
	"context"
	"net/http"
	"strings"

	"pet-marketplace/internal/ports/auth"
	"pet-marketplace/internal/ports/backend"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// AuthContext:
// - El Bearer token siempre se guarda en el contexto (backend.WithAccessToken) para que
//   los adapters lo reenvíen y los handlers de sesión lo lean.
// - Si verifier != nil => intenta Verify() y setea claims.
// - Si verifier == nil => modo dev: si viene header X-Debug-User-ID => setea claims.
// - Si no hay claims, el request sigue igual; los handlers decidirán si exigen auth.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			ctx := backend.WithAccessToken(r.Context(), token)

			// Dev mode: permitir inyectar user sin verifier
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get("X-Debug-User-ID")); uid != "" {
					ctx = context.WithValue(ctx, claimsKey, auth.Claims{UserID: uid})
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if token == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				// No cortamos aquí para no acoplar. El handler decide 401/403.
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DebugUser (solo dev) setea claims desde X-Debug-User-ID cuando no hubo token válido.
func DebugUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClaims(r.Context()); !ok {
			if uid := strings.TrimSpace(r.Header.Get("X-Debug-User-ID")); uid != "" {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey, auth.Claims{UserID: uid}))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
