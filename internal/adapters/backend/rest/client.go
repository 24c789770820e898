package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-marketplace/internal/platform/httpclient"
	"pet-marketplace/internal/ports/backend"
)

var (
	ErrNotConfigured = errors.New("backend client not configured")
	ErrUpstream      = errors.New("backend upstream error")
)

// Config del backend-as-a-service (PostgREST + GoTrue + Storage detrás de una URL).
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration

	// MaxBodyBytes limita las respuestas. 0 => sin límite: los selects no llevan limit.
	MaxBodyBytes int64
}

type Client struct {
	http    *httpclient.Client
	anonKey string
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" || strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrNotConfigured
	}
	hc, err := httpclient.NewWithBaseURL(base, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	hc.MaxBodyBytes = httpclient.NoBodyLimit
	if cfg.MaxBodyBytes > 0 {
		hc.MaxBodyBytes = cfg.MaxBodyBytes
	}
	return &Client{
		http:    hc,
		anonKey: strings.TrimSpace(cfg.AnonKey),
		now:     time.Now,
	}, nil
}

// Gateway arma el backend.Gateway completo sobre este cliente.
func (c *Client) Gateway() backend.Gateway {
	return backend.Gateway{
		Tables:  &Tables{c: c},
		Storage: &Storage{c: c},
		Auth:    &Auth{c: c},
	}
}

// headers arma apikey + Authorization. Si el ctx trae token de usuario se reenvía (RLS);
// si no, se usa la anon key.
func (c *Client) headers(ctx context.Context, extra map[string]string) map[string]string {
	token := backend.AccessToken(ctx)
	if token == "" {
		token = c.anonKey
	}
	h := map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + token,
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func (c *Client) do(ctx context.Context, req httpclient.Request, out any) error {
	if err := c.http.Do(ctx, req, out); err != nil {
		return mapErr(err)
	}
	return nil
}

func mapErr(err error) error {
	status := httpclient.StatusCode(err)
	if status == 0 {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	body := ""
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		body = strings.ToLower(he.Body)
	}

	switch {
	case status == http.StatusConflict || strings.Contains(body, "23505") || strings.Contains(body, "duplicate"):
		return fmt.Errorf("%w: %v", backend.ErrConflict, err)
	case strings.Contains(body, "email not confirmed"):
		return backend.ErrEmailNotConfirmed
	case status == http.StatusUnauthorized || status == http.StatusForbidden || strings.Contains(body, "invalid login credentials"):
		return fmt.Errorf("%w: %v", backend.ErrUnauthorized, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", backend.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
