package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"pet-marketplace/internal/domain/media"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"
)

const (
	EntityServices     = "services"
	EntityService      = "service"
	EntityUserServices = "userServices"

	entityUserFavorites = "userFavorites"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("service not found")
	ErrForbidden       = errors.New("forbidden")
)

type Service struct {
	repo    Repository
	storage backend.ObjectStorage
	cache   *querycache.Cache
	log     logger.Logger
	now     func() time.Time

	add    *querycache.Mutation[AddInput, Listing]
	update *querycache.Mutation[UpdateInput, Listing]
	remove *querycache.Mutation[DeleteInput, struct{}]
}

func NewService(repo Repository, storage backend.ObjectStorage, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:    repo,
		storage: storage,
		cache:   cache,
		log:     log.With(map[string]any{"module": "services"}),
		now:     time.Now,
	}
	cache.SetPolicy(EntityUserServices, querycache.Policy{StaleTime: 0})

	s.add = querycache.NewMutation(cache, "addService", s.doAdd,
		func(in AddInput, _ Listing) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserServices, in.ProviderID)),
				querycache.Entity(EntityServices),
			}
		})
	s.update = querycache.NewMutation(cache, "updateService", s.doUpdate,
		func(in UpdateInput, _ Listing) []querycache.Match { return s.changed(in.ProviderID, in.ID) })
	s.remove = querycache.NewMutation(cache, "deleteService", s.doDelete,
		func(in DeleteInput, _ struct{}) []querycache.Match { return s.changed(in.ProviderID, in.ID) })
	return s
}

func (s *Service) changed(providerID, id string) []querycache.Match {
	return []querycache.Match{
		querycache.Exact(querycache.NewKey(EntityUserServices, providerID)),
		querycache.Exact(querycache.NewKey(EntityService, id)),
		querycache.Entity(EntityServices),
		querycache.Entity(entityUserFavorites),
	}
}

func normalizeFilter(f Filter) Filter {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Category == "all" {
		f.Category = ""
	}
	f.Search = backend.CleanSearch(f.Search)
	f.Location = backend.CleanSearch(f.Location)
	if f.MaxPrice < 0 {
		f.MaxPrice = 0
	}
	return f
}

// Browse lista los servicios activos; MaxPrice compara contra el precio inicial.
func (s *Service) Browse(ctx context.Context, f Filter) ([]Listing, error) {
	f = normalizeFilter(f)
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityServices, f), func(ctx context.Context) ([]Listing, error) {
		return s.repo.Browse(ctx, f)
	})
}

func (s *Service) Get(ctx context.Context, id string) (Listing, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Listing{}, ErrNotFound
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityService, id), func(ctx context.Context) (Listing, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) ListByProvider(ctx context.Context, uid string) ([]Listing, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Listing{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserServices, uid), func(ctx context.Context) ([]Listing, error) {
		return s.repo.ListByProvider(ctx, uid)
	})
}

func (s *Service) ByIDs(ctx context.Context, ids []string) ([]Listing, error) {
	if len(ids) == 0 {
		return []Listing{}, nil
	}
	return s.repo.ByIDs(ctx, ids)
}

type AddInput struct {
	ProviderID   string         `json:"-"`
	Title        string         `json:"title" validate:"required,max=120"`
	Description  string         `json:"description" validate:"max=2000"`
	Category     Category       `json:"category" validate:"required,oneof=grooming veterinary training boarding foster temporary other"`
	PriceFrom    float64        `json:"price_from" validate:"gte=0"`
	PriceTo      float64        `json:"price_to" validate:"gte=0"`
	Location     string         `json:"location" validate:"required,max=120"`
	Availability map[string]any `json:"availability"`
	Image        *media.File    `json:"-"`
}

type UpdateInput struct {
	ID           string         `json:"-"`
	ProviderID   string         `json:"-"`
	Title        *string        `json:"title" validate:"omitempty,max=120"`
	Description  *string        `json:"description" validate:"omitempty,max=2000"`
	Category     *Category      `json:"category" validate:"omitempty,oneof=grooming veterinary training boarding foster temporary other"`
	PriceFrom    *float64       `json:"price_from" validate:"omitempty,gte=0"`
	PriceTo      *float64       `json:"price_to" validate:"omitempty,gte=0"`
	Location     *string        `json:"location" validate:"omitempty,max=120"`
	Status       *Status        `json:"status" validate:"omitempty,oneof=active inactive"`
	Availability map[string]any `json:"availability"`
}

type DeleteInput struct {
	ID         string
	ProviderID string
}

func (s *Service) Add(ctx context.Context, in AddInput) (Listing, error) {
	return s.add.Run(ctx, in)
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (Listing, error) {
	return s.update.Run(ctx, in)
}

func (s *Service) Delete(ctx context.Context, in DeleteInput) error {
	_, err := s.remove.Run(ctx, in)
	return err
}

func (s *Service) doAdd(ctx context.Context, in AddInput) (Listing, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return Listing{}, ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return Listing{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if strings.TrimSpace(in.Title) == "" {
		return Listing{}, fmt.Errorf("%w: title: required", ErrInvalidInput)
	}
	if in.PriceTo > 0 && in.PriceTo < in.PriceFrom {
		return Listing{}, fmt.Errorf("%w: price_to: gte=price_from", ErrInvalidInput)
	}

	// la imagen es opcional; sin imagen image_url queda vacío
	imageURL, key := "", ""
	if in.Image != nil {
		key = media.ObjectName(*in.Image)
		url, err := media.Upload(ctx, s.storage, media.BucketServices, key, *in.Image, false)
		if err != nil {
			return Listing{}, err
		}
		imageURL = url
	}

	availability := in.Availability
	if availability == nil {
		availability = map[string]any{}
	}
	now := s.now().UTC()
	l, err := s.repo.Insert(ctx, backend.Row{
		"provider_id":  in.ProviderID,
		"title":        strings.TrimSpace(in.Title),
		"description":  strings.TrimSpace(in.Description),
		"category":     string(in.Category),
		"price_from":   in.PriceFrom,
		"price_to":     in.PriceTo,
		"location":     strings.TrimSpace(in.Location),
		"image_url":    imageURL,
		"status":       string(StatusActive),
		"availability": availability,
		"created_at":   now,
		"updated_at":   now,
	})
	if err != nil {
		if key != "" {
			s.removeObject(ctx, key)
		}
		return Listing{}, err
	}
	s.log.Info("service added", map[string]any{"service_id": l.ID, "provider_id": in.ProviderID})
	return l, nil
}

func (s *Service) authorizeOwner(ctx context.Context, id, uid string) (Listing, error) {
	if strings.TrimSpace(uid) == "" {
		return Listing{}, ErrUnauthenticated
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.ProviderID != uid {
		return Listing{}, ErrForbidden
	}
	return l, nil
}

func (s *Service) doUpdate(ctx context.Context, in UpdateInput) (Listing, error) {
	if err := validate.Struct(in); err != nil {
		return Listing{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	current, err := s.authorizeOwner(ctx, in.ID, in.ProviderID)
	if err != nil {
		return Listing{}, err
	}

	values := backend.Row{"updated_at": s.now().UTC()}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return Listing{}, fmt.Errorf("%w: title: required", ErrInvalidInput)
		}
		values["title"] = title
	}
	if in.Description != nil {
		values["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		values["location"] = strings.TrimSpace(*in.Location)
	}
	if in.Category != nil {
		values["category"] = string(*in.Category)
	}
	if in.Status != nil {
		values["status"] = string(*in.Status)
	}
	if in.Availability != nil {
		values["availability"] = in.Availability
	}

	from, to := current.PriceFrom, current.PriceTo
	if in.PriceFrom != nil {
		from = *in.PriceFrom
		values["price_from"] = from
	}
	if in.PriceTo != nil {
		to = *in.PriceTo
		values["price_to"] = to
	}
	if to > 0 && to < from {
		return Listing{}, fmt.Errorf("%w: price_to: gte=price_from", ErrInvalidInput)
	}
	return s.repo.Update(ctx, in.ID, in.ProviderID, values)
}

func (s *Service) doDelete(ctx context.Context, in DeleteInput) (struct{}, error) {
	l, err := s.authorizeOwner(ctx, in.ID, in.ProviderID)
	if err != nil {
		return struct{}{}, err
	}
	if err := s.repo.DeleteFavorites(ctx, in.ID); err != nil {
		return struct{}{}, err
	}
	if err := s.repo.Delete(ctx, in.ID, in.ProviderID); err != nil {
		return struct{}{}, err
	}
	if l.ImageURL != "" {
		s.removeObject(ctx, path.Base(l.ImageURL))
	}
	return struct{}{}, nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.storage.Remove(ctx, media.BucketServices, []string{key}); err != nil {
		s.log.Warn("remove service image failed", map[string]any{"key": key, "error": err})
	}
}
