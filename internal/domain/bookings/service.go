package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-marketplace/internal/domain/services"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/querycache"
)

const (
	EntityUserBookings     = "userBookings"
	EntityProviderBookings = "providerBookings"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceInactive = errors.New("service is not active")
	ErrOwnService      = errors.New("cannot book own service")
	ErrMissingRow      = errors.New("booking insert returned no row")
)

// ServiceLookup resuelve el servicio reservado (prestador y precio salen de ahí).
type ServiceLookup interface {
	Get(ctx context.Context, id string) (services.Listing, error)
}

type Service struct {
	repo     Repository
	services ServiceLookup
	cache    *querycache.Cache
	log      logger.Logger
	now      func() time.Time

	create *querycache.Mutation[CreateInput, Booking]
}

func NewService(repo Repository, lookup ServiceLookup, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:     repo,
		services: lookup,
		cache:    cache,
		log:      log.With(map[string]any{"module": "bookings"}),
		now:      time.Now,
	}
	cache.SetPolicy(EntityUserBookings, querycache.Policy{StaleTime: 0})
	cache.SetPolicy(EntityProviderBookings, querycache.Policy{StaleTime: 0})

	s.create = querycache.NewMutation(cache, "createBooking", s.doCreate,
		func(in CreateInput, b Booking) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserBookings, in.CustomerID)),
				querycache.Exact(querycache.NewKey(EntityProviderBookings, b.ProviderID)),
			}
		})
	return s
}

// ListForCustomer devuelve las reservas hechas por uid, la fecha más reciente primero.
func (s *Service) ListForCustomer(ctx context.Context, uid string) ([]Booking, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Booking{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserBookings, uid), func(ctx context.Context) ([]Booking, error) {
		return s.repo.ListForCustomer(ctx, uid)
	})
}

// ListForProvider devuelve las reservas recibidas por uid como prestador.
func (s *Service) ListForProvider(ctx context.Context, uid string) ([]Booking, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Booking{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityProviderBookings, uid), func(ctx context.Context) ([]Booking, error) {
		return s.repo.ListForProvider(ctx, uid)
	})
}

type CreateInput struct {
	CustomerID  string `json:"-"`
	ServiceID   string `json:"service_id" validate:"required"`
	BookingDate string `json:"booking_date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	return s.create.Run(ctx, in)
}

func (s *Service) doCreate(ctx context.Context, in CreateInput) (Booking, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return Booking{}, ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return Booking{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	// HH:MM en 24h compara bien como string
	if in.EndTime <= in.StartTime {
		return Booking{}, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}

	listing, err := s.services.Get(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Booking{}, ErrServiceNotFound
		}
		return Booking{}, err
	}
	if listing.Status != services.StatusActive {
		return Booking{}, ErrServiceInactive
	}
	if listing.ProviderID == in.CustomerID {
		return Booking{}, ErrOwnService
	}

	now := s.now().UTC()
	b, err := s.repo.Insert(ctx, map[string]any{
		"service_id":   listing.ID,
		"customer_id":  in.CustomerID,
		"provider_id":  listing.ProviderID,
		"booking_date": in.BookingDate,
		"start_time":   in.StartTime,
		"end_time":     in.EndTime,
		"total_price":  listing.PriceFrom,
		"status":       string(StatusPending),
		"notes":        strings.TrimSpace(in.Notes),
		"created_at":   now,
		"updated_at":   now,
	})
	if err != nil {
		return Booking{}, err
	}
	s.log.Info("booking created", map[string]any{"booking_id": b.ID, "service_id": listing.ID})
	return b, nil
}
