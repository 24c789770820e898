package favorites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/services"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"
)

const EntityUserFavorites = "userFavorites"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type PetLookup interface {
	ByIDs(ctx context.Context, ids []string) ([]pets.Pet, error)
}

type ServiceLookup interface {
	ByIDs(ctx context.Context, ids []string) ([]services.Listing, error)
}

type Service struct {
	repo     Repository
	pets     PetLookup
	services ServiceLookup
	cache    *querycache.Cache
	log      logger.Logger
	locks    *keyedMutex

	toggle *querycache.Mutation[Input, bool]
	add    *querycache.Mutation[Input, Favorite]
	remove *querycache.Mutation[Input, struct{}]
}

func NewService(repo Repository, petLookup PetLookup, serviceLookup ServiceLookup, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:     repo,
		pets:     petLookup,
		services: serviceLookup,
		cache:    cache,
		log:      log.With(map[string]any{"module": "favorites"}),
		locks:    newKeyedMutex(),
	}
	cache.SetPolicy(EntityUserFavorites, querycache.Policy{StaleTime: 0})

	s.toggle = querycache.NewMutation(cache, "toggleFavorite", s.doToggle,
		func(in Input, _ bool) []querycache.Match { return invalidations(in.UserID) })
	s.add = querycache.NewMutation(cache, "addFavorite", s.doAdd,
		func(in Input, _ Favorite) []querycache.Match { return invalidations(in.UserID) })
	s.remove = querycache.NewMutation(cache, "removeFavorite", s.doRemove,
		func(in Input, _ struct{}) []querycache.Match { return invalidations(in.UserID) })
	return s
}

func invalidations(uid string) []querycache.Match {
	return []querycache.Match{
		querycache.Exact(querycache.NewKey(EntityUserFavorites, uid)),
		querycache.Exact(querycache.NewKey(EntityUserFavorites, uid, "ids")),
	}
}

// Aggregate devuelve los favoritos y el detalle de los ítems (una consulta por tipo).
// Si la consulta de un tipo falla, ese tipo queda vacío.
func (s *Service) Aggregate(ctx context.Context, uid string) (Aggregate, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return emptyAggregate(), nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserFavorites, uid), func(ctx context.Context) (Aggregate, error) {
		favs, err := s.repo.List(ctx, uid)
		if err != nil {
			return Aggregate{}, err
		}
		out := emptyAggregate()
		out.Favorites = favs

		var petIDs, serviceIDs []string
		for _, f := range favs {
			switch f.ItemType {
			case ItemPet:
				petIDs = append(petIDs, f.ItemID)
			case ItemService:
				serviceIDs = append(serviceIDs, f.ItemID)
			}
		}

		if len(petIDs) > 0 {
			items, err := s.pets.ByIDs(ctx, petIDs)
			if err != nil {
				s.log.Warn("favorite pets fetch failed", map[string]any{"user_id": uid, "error": err})
			}
			out.Pets = orderPets(petIDs, items)
		}
		if len(serviceIDs) > 0 {
			items, err := s.services.ByIDs(ctx, serviceIDs)
			if err != nil {
				s.log.Warn("favorite services fetch failed", map[string]any{"user_id": uid, "error": err})
			}
			out.Services = orderServices(serviceIDs, items)
		}
		return out, nil
	})
}

// orderPets respeta el orden de los favoritos y descarta los que no volvieron.
func orderPets(ids []string, items []pets.Pet) []pets.Pet {
	byID := make(map[string]pets.Pet, len(items))
	for _, p := range items {
		byID[p.ID] = p
	}
	out := make([]pets.Pet, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func orderServices(ids []string, items []services.Listing) []services.Listing {
	byID := make(map[string]services.Listing, len(items))
	for _, l := range items {
		byID[l.ID] = l
	}
	out := make([]services.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// IDs devuelve solo los item_id favoritos (para marcar corazones en los listados).
func (s *Service) IDs(ctx context.Context, uid string) ([]string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []string{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserFavorites, uid, "ids"), func(ctx context.Context) ([]string, error) {
		favs, err := s.repo.List(ctx, uid)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(favs))
		for _, f := range favs {
			out = append(out, f.ItemID)
		}
		return out, nil
	})
}

type Input struct {
	UserID   string   `json:"-"`
	ItemID   string   `json:"item_id" validate:"required"`
	ItemType ItemType `json:"item_type" validate:"required,oneof=pet service"`
}

func (s *Service) check(in Input) error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	return nil
}

// Toggle agrega o quita el favorito y devuelve el estado final.
// Las llamadas para el mismo (usuario, ítem) se ejecutan de a una.
func (s *Service) Toggle(ctx context.Context, in Input) (bool, error) {
	return s.toggle.Run(ctx, in)
}

func (s *Service) Add(ctx context.Context, in Input) (Favorite, error) {
	return s.add.Run(ctx, in)
}

func (s *Service) Remove(ctx context.Context, in Input) error {
	_, err := s.remove.Run(ctx, in)
	return err
}

func lockKey(in Input) string {
	return in.UserID + "|" + string(in.ItemType) + "|" + in.ItemID
}

func (s *Service) doToggle(ctx context.Context, in Input) (bool, error) {
	if err := s.check(in); err != nil {
		return false, err
	}
	unlock := s.locks.Lock(lockKey(in))
	defer unlock()

	_, err := s.repo.Find(ctx, in.UserID, in.ItemID, in.ItemType)
	switch {
	case err == nil:
		if err := s.repo.Delete(ctx, in.UserID, in.ItemID, in.ItemType); err != nil {
			return true, err
		}
		return false, nil
	case errors.Is(err, backend.ErrNotFound):
		if _, err := s.repo.Insert(ctx, in.UserID, in.ItemID, in.ItemType); err != nil {
			if errors.Is(err, backend.ErrConflict) {
				// otro proceso lo insertó primero
				return true, nil
			}
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}

func (s *Service) doAdd(ctx context.Context, in Input) (Favorite, error) {
	if err := s.check(in); err != nil {
		return Favorite{}, err
	}
	unlock := s.locks.Lock(lockKey(in))
	defer unlock()

	f, err := s.repo.Insert(ctx, in.UserID, in.ItemID, in.ItemType)
	if errors.Is(err, backend.ErrConflict) {
		return s.repo.Find(ctx, in.UserID, in.ItemID, in.ItemType)
	}
	return f, err
}

func (s *Service) doRemove(ctx context.Context, in Input) (struct{}, error) {
	if err := s.check(in); err != nil {
		return struct{}{}, err
	}
	unlock := s.locks.Lock(lockKey(in))
	defer unlock()

	return struct{}{}, s.repo.Delete(ctx, in.UserID, in.ItemID, in.ItemType)
}
