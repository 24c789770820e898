package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/querycache"
)

const (
	EntityReviews = "reviews"

	// rating y total_reviews del perfil cambian en el backend al insertar
	entityUserProfile      = "userProfile"
	entityProfileContact   = "profileContact"
	entityProviderProfiles = "providerProfiles"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrSelfReview      = errors.New("cannot review own profile")
)

type Service struct {
	repo  Repository
	cache *querycache.Cache
	log   logger.Logger
	now   func() time.Time

	create *querycache.Mutation[CreateInput, Review]
}

func NewService(repo Repository, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:  repo,
		cache: cache,
		log:   log.With(map[string]any{"module": "reviews"}),
		now:   time.Now,
	}
	s.create = querycache.NewMutation(cache, "createReview", s.doCreate,
		func(in CreateInput, _ Review) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityReviews, in.ReviewedID)),
				querycache.Exact(querycache.NewKey(entityUserProfile, in.ReviewedID)),
				querycache.Exact(querycache.NewKey(entityProfileContact, in.ReviewedID)),
				querycache.Entity(entityProviderProfiles),
			}
		})
	return s
}

// List devuelve las reseñas recibidas por el perfil, la más reciente primero.
func (s *Service) List(ctx context.Context, reviewedID string) ([]Review, error) {
	reviewedID = strings.TrimSpace(reviewedID)
	if reviewedID == "" {
		return []Review{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityReviews, reviewedID), func(ctx context.Context) ([]Review, error) {
		return s.repo.ListFor(ctx, reviewedID)
	})
}

type CreateInput struct {
	ReviewerID string `json:"-"`
	ReviewedID string `json:"-"`
	Rating     int    `json:"rating" validate:"min=1,max=5"`
	Comment    string `json:"comment" validate:"max=2000"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Review, error) {
	return s.create.Run(ctx, in)
}

func (s *Service) doCreate(ctx context.Context, in CreateInput) (Review, error) {
	in.ReviewerID = strings.TrimSpace(in.ReviewerID)
	in.ReviewedID = strings.TrimSpace(in.ReviewedID)
	if in.ReviewerID == "" {
		return Review{}, ErrUnauthenticated
	}
	if in.ReviewedID == "" {
		return Review{}, fmt.Errorf("%w: reviewed_id is required", ErrInvalidInput)
	}
	if in.ReviewerID == in.ReviewedID {
		return Review{}, ErrSelfReview
	}
	if err := validate.Struct(in); err != nil {
		return Review{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}

	return s.repo.Insert(ctx, map[string]any{
		"reviewer_id": in.ReviewerID,
		"reviewed_id": in.ReviewedID,
		"rating":      in.Rating,
		"comment":     strings.TrimSpace(in.Comment),
		"created_at":  s.now().UTC(),
	})
}
