package pets

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const (
	tablePets        = "pets"
	tableImages      = "pet_images"
	tablePetVaccines = "pet_vaccines"
	tableVaccines    = "vaccines"
	tableFavorites   = "favorites"
)

var (
	ownerEmbed = backend.Embed{
		Alias:      "owner",
		Table:      "profiles",
		ForeignKey: "seller_id",
		Columns:    []string{"full_name", "rating", "total_reviews"},
	}
	contactEmbed = backend.Embed{
		Alias:      "contact",
		Table:      "profiles",
		ForeignKey: "seller_id",
		Columns:    []string{"full_name", "phone", "location", "avatar_url", "rating", "total_reviews"},
	}
	vaccineNameEmbed = backend.Embed{
		Alias:      "vaccine",
		Table:      tableVaccines,
		ForeignKey: "vaccine_id",
		Columns:    []string{"name"},
	}
)

type Repository interface {
	Browse(ctx context.Context, f Filter) ([]Pet, error)
	// Get devuelve ErrNotFound si no existe.
	Get(ctx context.Context, id string) (Pet, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Pet, error)
	ByIDs(ctx context.Context, ids []string) ([]Pet, error)
	ImagesFor(ctx context.Context, petIDs []string) ([]Image, error)
	VaccinesFor(ctx context.Context, petIDs []string) ([]petVaccine, error)
	Vaccines(ctx context.Context) ([]Vaccine, error)

	Insert(ctx context.Context, row backend.Row) (Pet, error)
	InsertVaccines(ctx context.Context, rows []backend.Row) error
	InsertImages(ctx context.Context, rows []backend.Row) error
	Update(ctx context.Context, id, sellerID string, values backend.Row) (Pet, error)
	Delete(ctx context.Context, id, sellerID string) error
	DeleteChildren(ctx context.Context, petID string) error
	DeleteFavorites(ctx context.Context, petID string) error
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) Browse(ctx context.Context, f Filter) ([]Pet, error) {
	q := backend.Query{
		Table:   tablePets,
		Embeds:  []backend.Embed{ownerEmbed},
		Filters: []backend.Filter{backend.Eq("status", string(StatusAvailable))},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	}
	if f.Category != "" {
		q.Filters = append(q.Filters, backend.Eq("category", f.Category))
	}
	if f.Search != "" {
		q.AnyOf = []backend.Filter{backend.Contains("name", f.Search), backend.Contains("breed", f.Search)}
	}
	if f.Location != "" {
		q.Filters = append(q.Filters, backend.Contains("location", f.Location))
	}
	return r.selectPets(ctx, q)
}

func (r *tablesRepo) Get(ctx context.Context, id string) (Pet, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   tablePets,
		Embeds:  []backend.Embed{contactEmbed},
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return Pet{}, err
	}
	var p Pet
	if err := backend.DecodeOne(rows, &p); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Pet{}, ErrNotFound
		}
		return Pet{}, err
	}
	return p, nil
}

func (r *tablesRepo) ListBySeller(ctx context.Context, sellerID string) ([]Pet, error) {
	return r.selectPets(ctx, backend.Query{
		Table:   tablePets,
		Filters: []backend.Filter{backend.Eq("seller_id", sellerID)},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	})
}

func (r *tablesRepo) ByIDs(ctx context.Context, ids []string) ([]Pet, error) {
	return r.selectPets(ctx, backend.Query{
		Table:   tablePets,
		Embeds:  []backend.Embed{ownerEmbed},
		Filters: []backend.Filter{backend.In("id", ids)},
	})
}

func (r *tablesRepo) selectPets(ctx context.Context, q backend.Query) ([]Pet, error) {
	rows, err := r.tables.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Pet, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) ImagesFor(ctx context.Context, petIDs []string) ([]Image, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   tableImages,
		Filters: []backend.Filter{backend.In("pet_id", petIDs)},
		Order:   []backend.Order{{Column: "position"}},
	})
	if err != nil {
		return nil, err
	}
	var out []Image
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) VaccinesFor(ctx context.Context, petIDs []string) ([]petVaccine, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   tablePetVaccines,
		Columns: []string{"pet_id", "vaccine_id"},
		Embeds:  []backend.Embed{vaccineNameEmbed},
		Filters: []backend.Filter{backend.In("pet_id", petIDs)},
	})
	if err != nil {
		return nil, err
	}
	var out []petVaccine
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Vaccines(ctx context.Context) ([]Vaccine, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table: tableVaccines,
		Order: []backend.Order{{Column: "name"}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Vaccine, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Pet, error) {
	rows, err := r.tables.Insert(ctx, tablePets, []backend.Row{row})
	if err != nil {
		return Pet{}, err
	}
	var p Pet
	if err := backend.DecodeOne(rows, &p); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Pet{}, ErrMissingRow
		}
		return Pet{}, err
	}
	if p.ID == "" {
		return Pet{}, ErrMissingRow
	}
	return p, nil
}

func (r *tablesRepo) InsertVaccines(ctx context.Context, rows []backend.Row) error {
	_, err := r.tables.Insert(ctx, tablePetVaccines, rows)
	return err
}

func (r *tablesRepo) InsertImages(ctx context.Context, rows []backend.Row) error {
	_, err := r.tables.Insert(ctx, tableImages, rows)
	return err
}

func (r *tablesRepo) Update(ctx context.Context, id, sellerID string, values backend.Row) (Pet, error) {
	rows, err := r.tables.Update(ctx, tablePets, values, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("seller_id", sellerID),
	})
	if err != nil {
		return Pet{}, err
	}
	var p Pet
	if err := backend.DecodeOne(rows, &p); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Pet{}, ErrNotFound
		}
		return Pet{}, err
	}
	return p, nil
}

func (r *tablesRepo) Delete(ctx context.Context, id, sellerID string) error {
	return r.tables.Delete(ctx, tablePets, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("seller_id", sellerID),
	})
}

func (r *tablesRepo) DeleteChildren(ctx context.Context, petID string) error {
	if err := r.tables.Delete(ctx, tablePetVaccines, []backend.Filter{backend.Eq("pet_id", petID)}); err != nil {
		return err
	}
	return r.tables.Delete(ctx, tableImages, []backend.Filter{backend.Eq("pet_id", petID)})
}

func (r *tablesRepo) DeleteFavorites(ctx context.Context, petID string) error {
	return r.tables.Delete(ctx, tableFavorites, []backend.Filter{
		backend.Eq("item_id", petID),
		backend.Eq("item_type", "pet"),
	})
}
