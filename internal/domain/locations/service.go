package locations

import (
	"context"
	"sort"
	"strings"
	"time"

	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/ports/backend"
	ports "pet-marketplace/internal/ports/locations"
	"pet-marketplace/internal/querycache"
)

const (
	EntityMunicipalities = "brazilianMunicipalities"
	MunicipalitiesTTL    = 24 * time.Hour
)

// Option es el par value/label que consumen los selects de ubicación.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Service struct {
	provider ports.Provider
	cache    *querycache.Cache
	log      logger.Logger
}

func NewService(p ports.Provider, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	// dato público y estable: se comparte entre procesos si hay L2
	cache.SetPolicy(EntityMunicipalities, querycache.Policy{StaleTime: MunicipalitiesTTL, Shared: true})
	return &Service{
		provider: p,
		cache:    cache,
		log:      log.With(map[string]any{"module": "locations"}),
	}
}

// Municipalities devuelve "Nombre - UF" ordenado por UF y después por nombre.
// search filtra sin distinguir mayúsculas sobre la lista ya cacheada.
func (s *Service) Municipalities(ctx context.Context, search string) ([]Option, error) {
	all, err := querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityMunicipalities), func(ctx context.Context) ([]Option, error) {
		raw, err := s.provider.Municipalities(ctx)
		if err != nil {
			return nil, err
		}
		return toOptions(raw), nil
	})
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(backend.CleanSearch(search))
	if search == "" {
		return all, nil
	}
	out := make([]Option, 0)
	for _, o := range all {
		if strings.Contains(strings.ToLower(o.Label), search) {
			out = append(out, o)
		}
	}
	return out, nil
}

func toOptions(raw []ports.Municipality) []Option {
	items := make([]ports.Municipality, 0, len(raw))
	for _, m := range raw {
		m.Name = strings.TrimSpace(m.Name)
		m.UF = strings.TrimSpace(m.UF)
		// sin nombre o sin UF no se puede armar la etiqueta
		if m.Name == "" || m.UF == "" {
			continue
		}
		items = append(items, m)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UF != items[j].UF {
			return items[i].UF < items[j].UF
		}
		return items[i].Name < items[j].Name
	})

	out := make([]Option, len(items))
	for i, m := range items {
		label := m.Name + " - " + m.UF
		out[i] = Option{Value: label, Label: label}
	}
	return out
}
