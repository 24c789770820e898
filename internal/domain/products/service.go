package products

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
	EntityProducts     = "products"
	EntityProduct      = "product"
	EntityUserProducts = "userProducts"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("product not found")
	ErrForbidden       = errors.New("forbidden")
)

type Service struct {
	repo    Repository
	storage backend.ObjectStorage
	cache   *querycache.Cache
	log     logger.Logger
	now     func() time.Time

	add    *querycache.Mutation[AddInput, Product]
	update *querycache.Mutation[UpdateInput, Product]
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
		log:     log.With(map[string]any{"module": "products"}),
		now:     time.Now,
	}
	cache.SetPolicy(EntityUserProducts, querycache.Policy{StaleTime: 0})

	s.add = querycache.NewMutation(cache, "addProduct", s.doAdd,
		func(in AddInput, _ Product) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserProducts, in.SellerID)),
				querycache.Entity(EntityProducts),
			}
		})
	s.update = querycache.NewMutation(cache, "updateProduct", s.doUpdate,
		func(in UpdateInput, _ Product) []querycache.Match { return changed(in.SellerID, in.ID) })
	s.remove = querycache.NewMutation(cache, "deleteProduct", s.doDelete,
		func(in DeleteInput, _ struct{}) []querycache.Match { return changed(in.SellerID, in.ID) })
	return s
}

func changed(sellerID, id string) []querycache.Match {
	return []querycache.Match{
		querycache.Exact(querycache.NewKey(EntityUserProducts, sellerID)),
		querycache.Exact(querycache.NewKey(EntityProduct, id)),
		querycache.Entity(EntityProducts),
	}
}

func (s *Service) Browse(ctx context.Context, f Filter) ([]Product, error) {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Category == "all" {
		f.Category = ""
	}
	f.Search = backend.CleanSearch(f.Search)
	if f.MaxPrice < 0 {
		f.MaxPrice = 0
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityProducts, f), func(ctx context.Context) ([]Product, error) {
		return s.repo.Browse(ctx, f)
	})
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, ErrNotFound
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityProduct, id), func(ctx context.Context) (Product, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) ListBySeller(ctx context.Context, uid string) ([]Product, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Product{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserProducts, uid), func(ctx context.Context) ([]Product, error) {
		return s.repo.ListBySeller(ctx, uid)
	})
}

type AddInput struct {
	SellerID    string      `json:"-"`
	Name        string      `json:"name" validate:"required,max=120"`
	Description string      `json:"description" validate:"max=2000"`
	Price       float64     `json:"price" validate:"gt=0"`
	Category    Category    `json:"category" validate:"required,oneof=food toys accessories health other"`
	Stock       int         `json:"stock" validate:"gte=0"`
	Image       *media.File `json:"-"`
}

type UpdateInput struct {
	ID          string    `json:"-"`
	SellerID    string    `json:"-"`
	Name        *string   `json:"name" validate:"omitempty,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Price       *float64  `json:"price" validate:"omitempty,gt=0"`
	Category    *Category `json:"category" validate:"omitempty,oneof=food toys accessories health other"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	Status      *Status   `json:"status" validate:"omitempty,oneof=available unavailable"`
}

type DeleteInput struct {
	ID       string
	SellerID string
}

func (s *Service) Add(ctx context.Context, in AddInput) (Product, error) {
	return s.add.Run(ctx, in)
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (Product, error) {
	return s.update.Run(ctx, in)
}

func (s *Service) Delete(ctx context.Context, in DeleteInput) error {
	_, err := s.remove.Run(ctx, in)
	return err
}

func (s *Service) doAdd(ctx context.Context, in AddInput) (Product, error) {
	if strings.TrimSpace(in.SellerID) == "" {
		return Product{}, ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, fmt.Errorf("%w: name: required", ErrInvalidInput)
	}

	imageURL, key := "", ""
	if in.Image != nil {
		key = media.ObjectName(*in.Image)
		url, err := media.Upload(ctx, s.storage, media.BucketProducts, key, *in.Image, false)
		if err != nil {
			return Product{}, err
		}
		imageURL = url
	}

	now := s.now().UTC()
	p, err := s.repo.Insert(ctx, backend.Row{
		"seller_id":   in.SellerID,
		"name":        strings.TrimSpace(in.Name),
		"description": strings.TrimSpace(in.Description),
		"price":       in.Price,
		"category":    string(in.Category),
		"stock":       in.Stock,
		"image_url":   imageURL,
		"status":      string(StatusAvailable),
		"created_at":  now,
		"updated_at":  now,
	})
	if err != nil {
		if key != "" {
			s.removeObject(ctx, key)
		}
		return Product{}, err
	}
	return p, nil
}

func (s *Service) authorizeOwner(ctx context.Context, id, uid string) (Product, error) {
	if strings.TrimSpace(uid) == "" {
		return Product{}, ErrUnauthenticated
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.SellerID != uid {
		return Product{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) doUpdate(ctx context.Context, in UpdateInput) (Product, error) {
	if err := validate.Struct(in); err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if _, err := s.authorizeOwner(ctx, in.ID, in.SellerID); err != nil {
		return Product{}, err
	}

	values := backend.Row{"updated_at": s.now().UTC()}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: name: required", ErrInvalidInput)
		}
		values["name"] = name
	}
	if in.Description != nil {
		values["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		values["price"] = *in.Price
	}
	if in.Category != nil {
		values["category"] = string(*in.Category)
	}
	if in.Stock != nil {
		values["stock"] = *in.Stock
	}
	if in.Status != nil {
		values["status"] = string(*in.Status)
	}
	return s.repo.Update(ctx, in.ID, in.SellerID, values)
}

func (s *Service) doDelete(ctx context.Context, in DeleteInput) (struct{}, error) {
	p, err := s.authorizeOwner(ctx, in.ID, in.SellerID)
	if err != nil {
		return struct{}{}, err
	}
	if err := s.repo.Delete(ctx, in.ID, in.SellerID); err != nil {
		return struct{}{}, err
	}
	if p.ImageURL != "" {
		s.removeObject(ctx, path.Base(p.ImageURL))
	}
	return struct{}{}, nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.storage.Remove(ctx, media.BucketProducts, []string{key}); err != nil {
		s.log.Warn("remove product image failed", map[string]any{"key": key, "error": err})
	}
}
