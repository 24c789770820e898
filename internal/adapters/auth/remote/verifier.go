package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pet-marketplace/internal/ports/auth"
	"pet-marketplace/internal/ports/backend"
)

var (
	ErrNotConfigured = errors.New("remote verifier not configured")
	ErrTokenEmpty    = errors.New("token is empty")
	ErrUnauthorized  = errors.New("remote verifier unauthorized")
)

// Verifier implementa auth.AuthVerifier preguntándole al backend de identidad
// quién es el dueño del token (GET /user). Sirve cuando no tenemos el secreto JWT.
type Verifier struct {
	auth backend.Auth
}

func NewVerifier(a backend.Auth) *Verifier {
	return &Verifier{auth: a}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.auth == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	u, err := v.auth.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("remote verify failed: %w", err)
	}

	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return auth.Claims{}, errors.New("remote user missing id")
	}

	return auth.Claims{
		UserID: u.ID,
		Email:  strings.TrimSpace(u.Email),
		Role:   u.MetadataString("user_type"),
	}, nil
}
