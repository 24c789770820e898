package pets

import (
	"context"
	"fmt"
	"path"
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
	EntityPets     = "pets"
	EntityPet      = "pet"
	EntityUserPets = "userPets"
	EntityVaccines = "availableVaccines"

	// la invalida el borrado de un anuncio
	entityUserFavorites = "userFavorites"
)

const VaccinesStaleTime = time.Hour

type Service struct {
	repo    Repository
	storage backend.ObjectStorage
	cache   *querycache.Cache
	log     logger.Logger
	now     func() time.Time

	add    *querycache.Mutation[AddInput, Pet]
	update *querycache.Mutation[UpdateInput, Pet]
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
		log:     log.With(map[string]any{"module": "pets"}),
		now:     time.Now,
	}

	cache.SetPolicy(EntityUserPets, querycache.Policy{StaleTime: 0})
	cache.SetPolicy(EntityVaccines, querycache.Policy{StaleTime: VaccinesStaleTime})

	s.add = querycache.NewMutation(cache, "addPet", s.doAdd,
		func(in AddInput, _ Pet) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserPets, in.SellerID)),
				querycache.Entity(EntityPets),
			}
		})
	s.update = querycache.NewMutation(cache, "updatePet", s.doUpdate,
		func(in UpdateInput, _ Pet) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserPets, in.SellerID)),
				querycache.Exact(querycache.NewKey(EntityPet, in.ID)),
				querycache.Entity(EntityPets),
				querycache.Entity(entityUserFavorites),
			}
		})
	s.remove = querycache.NewMutation(cache, "deletePet", s.doDelete,
		func(in DeleteInput, _ struct{}) []querycache.Match {
			return []querycache.Match{
				querycache.Exact(querycache.NewKey(EntityUserPets, in.SellerID)),
				querycache.Exact(querycache.NewKey(EntityPet, in.ID)),
				querycache.Entity(EntityPets),
				querycache.Entity(entityUserFavorites),
			}
		})
	return s
}

// -------------------------
// Lecturas
// -------------------------

func normalizeFilter(f Filter) Filter {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Category == "all" {
		f.Category = ""
	}
	f.Search = backend.CleanSearch(f.Search)
	f.Location = backend.CleanSearch(f.Location)
	return f
}

// Browse lista los anuncios disponibles, más nuevos primero, con el resumen del vendedor.
func (s *Service) Browse(ctx context.Context, f Filter) ([]Pet, error) {
	f = normalizeFilter(f)
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityPets, f), func(ctx context.Context) ([]Pet, error) {
		return s.repo.Browse(ctx, f)
	})
}

// Get devuelve el anuncio con los datos de contacto del vendedor.
func (s *Service) Get(ctx context.Context, id string) (Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Pet{}, ErrNotFound
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityPet, id), func(ctx context.Context) (Pet, error) {
		return s.repo.Get(ctx, id)
	})
}

// ListByOwner devuelve los anuncios del vendedor con imágenes y vacunas.
// Los hijos se piden en una consulta por tipo; si una falla, ese hijo queda vacío.
func (s *Service) ListByOwner(ctx context.Context, uid string) ([]Pet, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return []Pet{}, nil
	}
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityUserPets, uid), func(ctx context.Context) ([]Pet, error) {
		items, err := s.repo.ListBySeller(ctx, uid)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return items, nil
		}
		s.attachChildren(ctx, items)
		return items, nil
	})
}

func (s *Service) attachChildren(ctx context.Context, items []Pet) {
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}

	imagesByPet := map[string][]Image{}
	images, err := s.repo.ImagesFor(ctx, ids)
	if err != nil {
		s.log.Warn("pet images fetch failed", map[string]any{"pets": len(ids), "error": err})
	}
	for _, img := range images {
		imagesByPet[img.PetID] = append(imagesByPet[img.PetID], img)
	}

	vaccinesByPet := map[string][]string{}
	vaccines, err := s.repo.VaccinesFor(ctx, ids)
	if err != nil {
		s.log.Warn("pet vaccines fetch failed", map[string]any{"pets": len(ids), "error": err})
	}
	for _, v := range vaccines {
		if v.Vaccine == nil || v.Vaccine.Name == "" {
			continue
		}
		vaccinesByPet[v.PetID] = append(vaccinesByPet[v.PetID], v.Vaccine.Name)
	}

	for i := range items {
		imgs := imagesByPet[items[i].ID]
		sort.SliceStable(imgs, func(a, b int) bool { return imgs[a].Position < imgs[b].Position })
		if imgs == nil {
			imgs = []Image{}
		}
		names := vaccinesByPet[items[i].ID]
		if names == nil {
			names = []string{}
		}
		items[i].Images = imgs
		items[i].Vaccines = names
	}
}

// ByIDs resuelve varios anuncios en una consulta. Los ids inexistentes se omiten.
func (s *Service) ByIDs(ctx context.Context, ids []string) ([]Pet, error) {
	if len(ids) == 0 {
		return []Pet{}, nil
	}
	return s.repo.ByIDs(ctx, ids)
}

// Vaccines es el catálogo de vacunas ordenado por nombre.
func (s *Service) Vaccines(ctx context.Context) ([]Vaccine, error) {
	return querycache.Fetch(ctx, s.cache, querycache.NewKey(EntityVaccines), func(ctx context.Context) ([]Vaccine, error) {
		return s.repo.Vaccines(ctx)
	})
}

// -------------------------
// Mutaciones
// -------------------------

type AddInput struct {
	SellerID      string       `json:"-"`
	Name          string       `json:"name" validate:"required,max=80"`
	Breed         string       `json:"breed" validate:"max=80"`
	Category      Category     `json:"category" validate:"required,oneof=dogs cats birds fish rabbits hamsters other"`
	Age           string       `json:"age" validate:"max=40"`
	IsDonation    bool         `json:"is_donation"`
	Description   string       `json:"description" validate:"max=2000"`
	Location      string       `json:"location" validate:"required,max=120"`
	HealthChecked bool         `json:"health_checked"`
	Vaccinated    bool         `json:"vaccinated"`
	VaccineIDs    []string     `json:"vaccine_ids" validate:"dive,required"`
	Images        []media.File `json:"-"`
}

type UpdateInput struct {
	ID            string    `json:"-"`
	SellerID      string    `json:"-"`
	Name          *string   `json:"name" validate:"omitempty,max=80"`
	Breed         *string   `json:"breed" validate:"omitempty,max=80"`
	Category      *Category `json:"category" validate:"omitempty,oneof=dogs cats birds fish rabbits hamsters other"`
	Age           *string   `json:"age" validate:"omitempty,max=40"`
	IsDonation    *bool     `json:"is_donation"`
	Description   *string   `json:"description" validate:"omitempty,max=2000"`
	Location      *string   `json:"location" validate:"omitempty,max=120"`
	Status        *Status   `json:"status" validate:"omitempty,oneof=available pending adopted"`
	HealthChecked *bool     `json:"health_checked"`
	Vaccinated    *bool     `json:"vaccinated"`
}

type DeleteInput struct {
	ID       string
	SellerID string
}

func (s *Service) Add(ctx context.Context, in AddInput) (Pet, error) {
	return s.add.Run(ctx, in)
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (Pet, error) {
	return s.update.Run(ctx, in)
}

func (s *Service) Delete(ctx context.Context, in DeleteInput) error {
	_, err := s.remove.Run(ctx, in)
	return err
}

// AddPending indica si hay un alta en curso.
func (s *Service) AddPending() bool { return s.add.Pending() }

func (s *Service) validateAdd(in AddInput) error {
	if strings.TrimSpace(in.SellerID) == "" {
		return ErrUnauthenticated
	}
	if len(in.Images) == 0 {
		return ErrNoImages
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Location) == "" {
		return ErrInvalidInput
	}
	for i, img := range in.Images {
		if len(img.Data) == 0 {
			return fmt.Errorf("%w: images[%d]: empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// doAdd: imágenes -> fila del anuncio (con la primera como portada) -> vacunas -> imágenes.
// Si falla un paso posterior al insert, se borra lo que ya se escribió.
func (s *Service) doAdd(ctx context.Context, in AddInput) (Pet, error) {
	if err := s.validateAdd(in); err != nil {
		return Pet{}, err
	}

	keys := make([]string, 0, len(in.Images))
	urls := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		key := media.ObjectName(img)
		url, err := media.Upload(ctx, s.storage, media.BucketPets, key, img, false)
		if err != nil {
			s.removeObjects(ctx, keys)
			return Pet{}, err
		}
		keys = append(keys, key)
		urls = append(urls, url)
	}

	now := s.now().UTC()
	pet, err := s.repo.Insert(ctx, backend.Row{
		"seller_id":      in.SellerID,
		"name":           strings.TrimSpace(in.Name),
		"breed":          strings.TrimSpace(in.Breed),
		"category":       string(in.Category),
		"age":            strings.TrimSpace(in.Age),
		"is_donation":    in.IsDonation,
		"description":    strings.TrimSpace(in.Description),
		"image_url":      urls[0],
		"location":       strings.TrimSpace(in.Location),
		"status":         string(StatusAvailable),
		"health_checked": in.HealthChecked,
		"vaccinated":     in.Vaccinated,
		"created_at":     now,
		"updated_at":     now,
	})
	if err != nil {
		s.removeObjects(ctx, keys)
		return Pet{}, err
	}

	if vaccineIDs := dedupe(in.VaccineIDs); len(vaccineIDs) > 0 {
		rows := make([]backend.Row, 0, len(vaccineIDs))
		for _, id := range vaccineIDs {
			rows = append(rows, backend.Row{"pet_id": pet.ID, "vaccine_id": id})
		}
		if err := s.repo.InsertVaccines(ctx, rows); err != nil {
			return Pet{}, s.compensateAdd(ctx, pet, keys, "vaccines", err)
		}
	}

	imageRows := make([]backend.Row, 0, len(urls))
	pet.Images = make([]Image, 0, len(urls))
	for i, url := range urls {
		imageRows = append(imageRows, backend.Row{"pet_id": pet.ID, "url": url, "position": i})
		pet.Images = append(pet.Images, Image{PetID: pet.ID, URL: url, Position: i})
	}
	if err := s.repo.InsertImages(ctx, imageRows); err != nil {
		return Pet{}, s.compensateAdd(ctx, pet, keys, "images", err)
	}

	s.log.Info("pet added", map[string]any{"pet_id": pet.ID, "seller_id": in.SellerID, "images": len(urls)})
	return pet, nil
}

func (s *Service) compensateAdd(ctx context.Context, pet Pet, keys []string, step string, cause error) error {
	petID := pet.ID
	perr := &PartialWriteError{Step: step, PetID: petID, Err: cause}

	// el ctx del llamador puede estar cancelado; la limpieza igual tiene que correr
	cctx := context.WithoutCancel(ctx)
	err := s.repo.DeleteChildren(cctx, petID)
	if err == nil {
		err = s.repo.Delete(cctx, petID, pet.SellerID)
	}
	if err != nil {
		s.log.Error("add pet compensation failed", map[string]any{"pet_id": petID, "step": step, "error": err})
		return perr
	}
	s.removeObjects(cctx, keys)
	perr.Compensated = true
	s.log.Warn("add pet rolled back", map[string]any{"pet_id": petID, "step": step, "error": cause})
	return perr
}

func (s *Service) removeObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.storage.Remove(ctx, media.BucketPets, keys); err != nil {
		s.log.Warn("remove uploaded images failed", map[string]any{"keys": keys, "error": err})
	}
}

func (s *Service) doUpdate(ctx context.Context, in UpdateInput) (Pet, error) {
	if err := validate.Struct(in); err != nil {
		return Pet{}, fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(err))
	}
	if _, err := s.authorizeOwner(ctx, in.ID, in.SellerID); err != nil {
		return Pet{}, err
	}

	values := backend.Row{"updated_at": s.now().UTC()}
	setString := func(col string, v *string) {
		if v != nil {
			values[col] = strings.TrimSpace(*v)
		}
	}
	setString("name", in.Name)
	setString("breed", in.Breed)
	setString("age", in.Age)
	setString("description", in.Description)
	setString("location", in.Location)
	if in.Name != nil && values["name"] == "" {
		return Pet{}, fmt.Errorf("%w: name: required", ErrInvalidInput)
	}
	if in.Category != nil {
		values["category"] = string(*in.Category)
	}
	if in.Status != nil {
		values["status"] = string(*in.Status)
	}
	if in.IsDonation != nil {
		values["is_donation"] = *in.IsDonation
	}
	if in.HealthChecked != nil {
		values["health_checked"] = *in.HealthChecked
	}
	if in.Vaccinated != nil {
		values["vaccinated"] = *in.Vaccinated
	}
	return s.repo.Update(ctx, in.ID, in.SellerID, values)
}

// doDelete borra primero los hijos, después los favoritos que apuntan al anuncio y al final la fila.
func (s *Service) doDelete(ctx context.Context, in DeleteInput) (struct{}, error) {
	p, err := s.authorizeOwner(ctx, in.ID, in.SellerID)
	if err != nil {
		return struct{}{}, err
	}
	images, err := s.repo.ImagesFor(ctx, []string{in.ID})
	if err != nil {
		s.log.Warn("pet images fetch failed", map[string]any{"pet_id": in.ID, "error": err})
	}

	// pet_vaccines puede haberse borrado aunque falle pet_images
	if err := s.repo.DeleteChildren(ctx, in.ID); err != nil {
		return struct{}{}, &PartialWriteError{Step: "children", PetID: in.ID, Err: err}
	}
	if err := s.repo.DeleteFavorites(ctx, in.ID); err != nil {
		return struct{}{}, &PartialWriteError{Step: "favorites", PetID: in.ID, Err: err}
	}
	if err := s.repo.Delete(ctx, in.ID, in.SellerID); err != nil {
		return struct{}{}, &PartialWriteError{Step: "pet", PetID: in.ID, Err: err}
	}

	keys := objectKeys(p.ImageURL, images)
	s.removeObjects(ctx, keys)
	s.log.Info("pet deleted", map[string]any{"pet_id": in.ID, "seller_id": in.SellerID})
	return struct{}{}, nil
}

// objectKeys deriva las keys del bucket a partir de las URLs públicas.
func objectKeys(cover string, images []Image) []string {
	urls := make([]string, 0, len(images)+1)
	if cover != "" {
		urls = append(urls, cover)
	}
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	keys := make([]string, 0, len(urls))
	seen := map[string]bool{}
	for _, u := range urls {
		k := path.Base(u)
		if k == "." || k == "/" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
