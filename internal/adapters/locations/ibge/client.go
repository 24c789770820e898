package ibge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-marketplace/internal/platform/httpclient"
	"pet-marketplace/internal/ports/locations"
)

var (
	ErrNotConfigured = errors.New("ibge client not configured")
	ErrUpstream      = errors.New("ibge upstream error")
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client consulta la API pública de localidades del IBGE.
type Client struct {
	url  string
	http *httpclient.Client
}

func NewClient(cfg Config) *Client {
	hc := httpclient.New(cfg.Timeout)
	// la lista completa ronda 1.5MB
	hc.MaxBodyBytes = 8 << 20
	return &Client{
		url:  strings.TrimSpace(cfg.URL),
		http: hc,
	}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.url != ""
}

type ufDTO struct {
	Sigla string `json:"sigla"`
}

type municipioDTO struct {
	ID           int    `json:"id"`
	Nome         string `json:"nome"`
	Microrregiao *struct {
		Mesorregiao struct {
			UF ufDTO `json:"UF"`
		} `json:"mesorregiao"`
	} `json:"microrregiao"`
	RegiaoImediata *struct {
		RegiaoIntermediaria struct {
			UF ufDTO `json:"UF"`
		} `json:"regiao-intermediaria"`
	} `json:"regiao-imediata"`
}

func (m municipioDTO) uf() string {
	if m.Microrregiao != nil && m.Microrregiao.Mesorregiao.UF.Sigla != "" {
		return m.Microrregiao.Mesorregiao.UF.Sigla
	}
	if m.RegiaoImediata != nil {
		return m.RegiaoImediata.RegiaoIntermediaria.UF.Sigla
	}
	return ""
}

func (c *Client) Municipalities(ctx context.Context) ([]locations.Municipality, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var raw []municipioDTO
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url, nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	out := make([]locations.Municipality, 0, len(raw))
	for _, m := range raw {
		out = append(out, locations.Municipality{
			ID:   m.ID,
			Name: strings.TrimSpace(m.Nome),
			UF:   m.uf(),
		})
	}
	return out, nil
}
