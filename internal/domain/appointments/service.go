package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/profiles"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/querycache"
)

const EntityAppointments = "appointments"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrVetNotFound     = errors.New("veterinarian not found")
	ErrNotVeterinarian = errors.New("profile is not a veterinarian")
	ErrOwnAppointment  = errors.New("cannot book an appointment with yourself")
	ErrPetNotFound     = errors.New("pet not found")
	ErrMissingRow      = errors.New("appointment insert returned no row")
)

type ProfileLookup interface {
	Get(ctx context.Context, uid string) (*profiles.Profile, error)
}

type PetLookup interface {
	Get(ctx context.Context, id string) (pets.Pet, error)
}

type Service struct {
	repo     Repository
	profiles ProfileLookup
	pets     PetLookup
	cache    *querycache.Cache
	log      logger.Logger
	now      func() time.Time

	create *querycache.Mutation[CreateInput, Appointment]
}

func NewService(repo Repository, profileLookup ProfileLookup, petLookup PetLookup, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:     repo,
		profiles: profileLookup,
		pets:     petLookup,
		cache:    cache,
		log:      log.With(map[string]any{"module": "appointments"}),
		now:      time.Now,
	}
	cache.SetPolicy(EntityAppointments, querycache.Policy{StaleTime: 0})

	s.create = querycache.NewMutation(cache, "createAppointment", s.doCreate,
		func(in CreateInput, a Appointment) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityAppointments, in.OwnerID, RoleConsumer)),
				querycache.Exact(querycache.NewKey(EntityAppointments, in.VeterinarianID, RoleVeterinarian)),
			}
		})
	return s
}

// RoleFor elige el lado por defecto según el tipo de cuenta del perfil.
func (s *Service) RoleFor(ctx context.Context, uid string) (Role, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if p != nil && p.UserType == profiles.UserTypeVeterinarian {
		return RoleVeterinarian, nil
	}
	return RoleConsumer, nil
}

// ListFor devuelve las citas de uid vistas desde role, la fecha más reciente primero.
func (s *Service) ListFor(ctx context.Context, uid string, role Role) ([]Appointment, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Appointment{}, nil
	}
	if role != RoleVeterinarian && role != RoleConsumer {
		return nil, fmt.Errorf("%w: role must be veterinarian or consumer", ErrInvalidInput)
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityAppointments, uid, role), func(ctx context.Context) ([]Appointment, error) {
		return s.repo.ListFor(ctx, uid, role)
	})
}

type CreateInput struct {
	OwnerID        string `json:"-"`
	VeterinarianID string `json:"veterinarian_id" validate:"required"`
	PetID          string `json:"pet_id" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string `json:"time" validate:"required,datetime=15:04"`
	Notes          string `json:"notes" validate:"max=1000"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	return s.create.Run(ctx, in)
}

func (s *Service) doCreate(ctx context.Context, in CreateInput) (Appointment, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return Appointment{}, ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return Appointment{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if in.VeterinarianID == in.OwnerID {
		return Appointment{}, ErrOwnAppointment
	}

	vet, err := s.profiles.Get(ctx, in.VeterinarianID)
	if err != nil {
		return Appointment{}, err
	}
	if vet == nil {
		return Appointment{}, ErrVetNotFound
	}
	if vet.UserType != profiles.UserTypeVeterinarian {
		return Appointment{}, ErrNotVeterinarian
	}

	if _, err := s.pets.Get(ctx, in.PetID); err != nil {
		if errors.Is(err, pets.ErrNotFound) {
			return Appointment{}, ErrPetNotFound
		}
		return Appointment{}, err
	}

	now := s.now().UTC()
	a, err := s.repo.Insert(ctx, map[string]any{
		"veterinarian_id": in.VeterinarianID,
		"owner_id":        in.OwnerID,
		"pet_id":          in.PetID,
		"date":            in.Date,
		"time":            in.Time,
		"status":          string(StatusScheduled),
		"notes":           strings.TrimSpace(in.Notes),
		"created_at":      now,
		"updated_at":      now,
	})
	if err != nil {
		return Appointment{}, err
	}
	s.log.Info("appointment created", map[string]any{"appointment_id": a.ID, "veterinarian_id": in.VeterinarianID})
	return a, nil
}
