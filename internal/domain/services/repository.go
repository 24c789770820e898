package services

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const (
	table          = "services"
	tableFavorites = "favorites"
)

var (
	providerEmbed = backend.Embed{
		Alias:      "provider",
		Table:      "profiles",
		ForeignKey: "provider_id",
		Columns:    []string{"full_name", "rating", "total_reviews"},
	}
	contactEmbed = backend.Embed{
		Alias:      "contact",
		Table:      "profiles",
		ForeignKey: "provider_id",
		Columns:    []string{"full_name", "phone", "location", "avatar_url", "rating", "total_reviews"},
	}
)

type Repository interface {
	Browse(ctx context.Context, f Filter) ([]Listing, error)
	Get(ctx context.Context, id string) (Listing, error)
	ListByProvider(ctx context.Context, providerID string) ([]Listing, error)
	ByIDs(ctx context.Context, ids []string) ([]Listing, error)
	Insert(ctx context.Context, row backend.Row) (Listing, error)
	Update(ctx context.Context, id, providerID string, values backend.Row) (Listing, error)
	Delete(ctx context.Context, id, providerID string) error
	DeleteFavorites(ctx context.Context, id string) error
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) Browse(ctx context.Context, f Filter) ([]Listing, error) {
	q := backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{providerEmbed},
		Filters: []backend.Filter{backend.Eq("status", string(StatusActive))},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	}
	if f.Category != "" {
		q.Filters = append(q.Filters, backend.Eq("category", f.Category))
	}
	if f.Search != "" {
		q.AnyOf = []backend.Filter{backend.Contains("title", f.Search), backend.Contains("description", f.Search)}
	}
	if f.Location != "" {
		q.Filters = append(q.Filters, backend.Contains("location", f.Location))
	}
	if f.MaxPrice > 0 {
		q.Filters = append(q.Filters, backend.Lte("price_from", f.MaxPrice))
	}
	return r.list(ctx, q)
}

func (r *tablesRepo) Get(ctx context.Context, id string) (Listing, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{contactEmbed},
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	return decodeOne(rows, err)
}

func (r *tablesRepo) ListByProvider(ctx context.Context, providerID string) ([]Listing, error) {
	return r.list(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.Eq("provider_id", providerID)},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	})
}

func (r *tablesRepo) ByIDs(ctx context.Context, ids []string) ([]Listing, error) {
	return r.list(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{providerEmbed},
		Filters: []backend.Filter{backend.In("id", ids)},
	})
}

func (r *tablesRepo) list(ctx context.Context, q backend.Query) ([]Listing, error) {
	rows, err := r.tables.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Listing, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	return decodeOne(rows, err)
}

func (r *tablesRepo) Update(ctx context.Context, id, providerID string, values backend.Row) (Listing, error) {
	rows, err := r.tables.Update(ctx, table, values, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("provider_id", providerID),
	})
	return decodeOne(rows, err)
}

func (r *tablesRepo) Delete(ctx context.Context, id, providerID string) error {
	return r.tables.Delete(ctx, table, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("provider_id", providerID),
	})
}

func (r *tablesRepo) DeleteFavorites(ctx context.Context, id string) error {
	return r.tables.Delete(ctx, tableFavorites, []backend.Filter{
		backend.Eq("item_id", id),
		backend.Eq("item_type", "service"),
	})
}

func decodeOne(rows []backend.Row, err error) (Listing, error) {
	if err != nil {
		return Listing{}, err
	}
	var l Listing
	if err := backend.DecodeOne(rows, &l); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, err
	}
	return l, nil
}
