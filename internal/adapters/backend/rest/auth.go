package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"pet-marketplace/internal/platform/httpclient"
	"pet-marketplace/internal/ports/backend"
)

const authPath = "/auth/v1"

type Auth struct {
	c *Client
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         backend.User `json:"user"`
}

func (a *Auth) toSession(r sessionResponse) backend.Session {
	s := backend.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		s.ExpiresAt = a.c.now().Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return s
}

// SignUp: según la config del proyecto GoTrue devuelve el user suelto o una sesión con user.
func (a *Auth) SignUp(ctx context.Context, email, password string, attrs map[string]any) (backend.User, error) {
	var resp struct {
		ID       string         `json:"id"`
		Email    string         `json:"email"`
		Metadata map[string]any `json:"user_metadata"`
		User     *backend.User  `json:"user"`
	}
	err := a.c.do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    authPath + "/signup",
		Headers: a.c.headers(context.Background(), nil),
		JSON:    map[string]any{"email": email, "password": password, "data": attrs},
	}, &resp)
	if err != nil {
		return backend.User{}, err
	}
	if resp.User != nil {
		return *resp.User, nil
	}
	return backend.User{ID: resp.ID, Email: resp.Email, Metadata: resp.Metadata}, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	var resp sessionResponse
	err := a.c.do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    authPath + "/token",
		Query:   url.Values{"grant_type": {"password"}},
		Headers: a.c.headers(context.Background(), nil),
		JSON:    map[string]any{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return backend.Session{}, err
	}
	return a.toSession(resp), nil
}

func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	return a.c.do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    authPath + "/logout",
		Headers: a.c.headers(backend.WithAccessToken(ctx, accessToken), nil),
	}, nil)
}

func (a *Auth) GetUser(ctx context.Context, accessToken string) (backend.User, error) {
	var u backend.User
	err := a.c.do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    authPath + "/user",
		Headers: a.c.headers(backend.WithAccessToken(ctx, accessToken), nil),
	}, &u)
	return u, err
}

func (a *Auth) VerifyEmail(ctx context.Context, tokenHash, kind string) (backend.Session, error) {
	var resp sessionResponse
	err := a.c.do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    authPath + "/verify",
		Headers: a.c.headers(context.Background(), nil),
		JSON:    map[string]any{"type": kind, "token_hash": tokenHash},
	}, &resp)
	if err != nil {
		return backend.Session{}, err
	}
	return a.toSession(resp), nil
}
