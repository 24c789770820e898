package profiles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pet-marketplace/internal/domain/media"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/validate"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"
)

// Entidades del cache.
const (
	EntityProfile   = "userProfile"
	EntityContact   = "profileContact"
	EntitySummaries = "providerProfiles"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("profile not found")
)

type Service struct {
	repo    Repository
	storage backend.ObjectStorage
	cache   *querycache.Cache
	log     logger.Logger
	now     func() time.Time

	update      *querycache.Mutation[UpdateInput, Profile]
	updateImage *querycache.Mutation[ImageInput, Profile]
	removeImage *querycache.Mutation[string, Profile]
}

func NewService(repo Repository, storage backend.ObjectStorage, cache *querycache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:    repo,
		storage: storage,
		cache:   cache,
		log:     log.With(map[string]any{"module": "profiles"}),
		now:     time.Now,
	}
	s.update = querycache.NewMutation(cache, "updateProfile", s.doUpdate,
		func(in UpdateInput, _ Profile) []querycache.Match { return invalidations(in.UserID) })
	s.updateImage = querycache.NewMutation(cache, "updateProfileImage", s.doUpdateImage,
		func(in ImageInput, _ Profile) []querycache.Match { return invalidations(in.UserID) })
	s.removeImage = querycache.NewMutation(cache, "removeProfileImage", s.doRemoveImage,
		func(uid string, _ Profile) []querycache.Match { return invalidations(uid) })
	return s
}

func invalidations(uid string) []querycache.Match {
	return []querycache.Match{
		querycache.Exact(querycache.NewKey(EntityProfile, uid)),
		querycache.Exact(querycache.NewKey(EntityContact, uid)),
		querycache.Entity(EntitySummaries),
	}
}

// Get devuelve nil (sin error) si no hay identidad o si el perfil todavía no existe.
func (s *Service) Get(ctx context.Context, uid string) (*Profile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityProfile, uid), func(ctx context.Context) (*Profile, error) {
		p, err := s.repo.Get(ctx, uid)
		if errors.Is(err, backend.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &p, nil
	})
}

func (s *Service) Contact(ctx context.Context, uid string) (Contact, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Contact{}, ErrInvalidInput
	}
	c, err := querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityContact, uid), func(ctx context.Context) (Contact, error) {
		return s.repo.Contact(ctx, uid)
	})
	if errors.Is(err, backend.ErrNotFound) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

// Summaries resuelve varios perfiles en una sola consulta, indexados por id.
func (s *Service) Summaries(ctx context.Context, ids []string) (map[string]Summary, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return map[string]Summary{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntitySummaries, ids), func(ctx context.Context) (map[string]Summary, error) {
		items, err := s.repo.Summaries(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[string]Summary, len(items))
		for _, it := range items {
			out[it.ID] = it
		}
		return out, nil
	})
}

// normalizeIDs deja la lista sin vacíos, sin duplicados y ordenada (la key del cache depende de eso).
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// -------------------------
// Mutaciones
// -------------------------

type UpdateInput struct {
	UserID   string    `json:"-" validate:"required"`
	FullName *string   `json:"full_name" validate:"omitempty,max=120"`
	Phone    *string   `json:"phone" validate:"omitempty,max=30"`
	Location *string   `json:"location" validate:"omitempty,max=120"`
	Bio      *string   `json:"bio" validate:"omitempty,max=1000"`
	UserType *UserType `json:"user_type" validate:"omitempty,oneof=veterinarian seller consumer"`
}

type ImageInput struct {
	UserID string
	File   media.File
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (Profile, error) {
	return s.update.Run(ctx, in)
}

func (s *Service) UpdateImage(ctx context.Context, in ImageInput) (Profile, error) {
	return s.updateImage.Run(ctx, in)
}

func (s *Service) RemoveImage(ctx context.Context, uid string) (Profile, error) {
	return s.removeImage.Run(ctx, uid)
}

func (s *Service) doUpdate(ctx context.Context, in UpdateInput) (Profile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Profile{}, ErrUnauthenticated
	}
	if err := validate.Struct(in); err != nil {
		return Profile{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}

	row := backend.Row{"id": in.UserID, "updated_at": s.now().UTC()}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return Profile{}, fmt.Errorf("%w: full_name: required", ErrInvalidInput)
		}
		row["full_name"] = name
	}
	if in.Phone != nil {
		row["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Location != nil {
		row["location"] = strings.TrimSpace(*in.Location)
	}
	if in.Bio != nil {
		row["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.UserType != nil {
		row["user_type"] = string(*in.UserType)
	}
	return s.repo.Upsert(ctx, row)
}

func (s *Service) doUpdateImage(ctx context.Context, in ImageInput) (Profile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Profile{}, ErrUnauthenticated
	}
	if len(in.File.Data) == 0 {
		return Profile{}, fmt.Errorf("%w: image: required", ErrInvalidInput)
	}

	// la imagen vieja puede no existir
	if err := s.storage.Remove(ctx, media.BucketProfiles, []string{in.UserID}); err != nil {
		s.log.Warn("remove previous avatar failed", map[string]any{"user_id": in.UserID, "error": err})
	}

	key := in.UserID + "." + in.File.Ext()
	url, err := media.Upload(ctx, s.storage, media.BucketProfiles, key, in.File, true)
	if err != nil {
		return Profile{}, err
	}
	return s.repo.Update(ctx, in.UserID, backend.Row{"avatar_url": url, "updated_at": s.now().UTC()})
}

func (s *Service) doRemoveImage(ctx context.Context, uid string) (Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return Profile{}, ErrUnauthenticated
	}
	keys := []string{uid + ".png", uid + ".jpg", uid + ".jpeg", uid}
	if err := s.storage.Remove(ctx, media.BucketProfiles, keys); err != nil {
		s.log.Warn("remove avatar failed", map[string]any{"user_id": uid, "error": err})
	}
	return s.repo.Update(ctx, uid, backend.Row{"avatar_url": "", "updated_at": s.now().UTC()})
}

// -------------------------
// Alta de perfil
// -------------------------

// SignUpAttrs son los datos que se piden en el registro.
type SignUpAttrs struct {
	FullName string   `json:"full_name" validate:"required,max=120"`
	Phone    string   `json:"phone" validate:"omitempty,max=30"`
	UserType UserType `json:"user_type" validate:"omitempty,oneof=veterinarian seller consumer"`
}

// Create inserta la fila de perfil de una identidad recién registrada.
func (s *Service) Create(ctx context.Context, user backend.User, attrs SignUpAttrs) (Profile, error) {
	if strings.TrimSpace(user.ID) == "" {
		return Profile{}, ErrInvalidInput
	}
	if attrs.UserType == "" {
		attrs.UserType = UserTypeConsumer
	}
	now := s.now().UTC()
	p, err := s.repo.Insert(ctx, backend.Row{
		"id":         user.ID,
		"email":      user.Email,
		"full_name":  strings.TrimSpace(attrs.FullName),
		"phone":      strings.TrimSpace(attrs.Phone),
		"user_type":  string(attrs.UserType),
		"avatar_url": "",
		"created_at": now,
		"updated_at": now,
	})
	if err != nil {
		return Profile{}, err
	}
	s.cache.Invalidate(ctx, querycache.Exact(querycache.NewKey(EntityProfile, user.ID)))
	return p, nil
}

// Ensure crea el perfil en el primer sign-in si el registro no llegó a hacerlo.
func (s *Service) Ensure(ctx context.Context, user backend.User) (Profile, error) {
	p, err := s.repo.Get(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return Profile{}, err
	}

	s.log.Info("creating missing profile", map[string]any{"user_id": user.ID})
	p, err = s.Create(ctx, user, SignUpAttrs{
		FullName: user.MetadataString("full_name"),
		Phone:    user.MetadataString("phone"),
		UserType: UserType(user.MetadataString("user_type")),
	})
	if errors.Is(err, backend.ErrConflict) {
		// otro request lo creó en el medio
		return s.repo.Get(ctx, user.ID)
	}
	return p, err
}
