package products

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const table = "products"

var sellerEmbed = backend.Embed{
	Alias:      "seller",
	Table:      "profiles",
	ForeignKey: "seller_id",
	Columns:    []string{"full_name", "rating", "total_reviews"},
}

type Repository interface {
	Browse(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Product, error)
	Insert(ctx context.Context, row backend.Row) (Product, error)
	Update(ctx context.Context, id, sellerID string, values backend.Row) (Product, error)
	Delete(ctx context.Context, id, sellerID string) error
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) Browse(ctx context.Context, f Filter) ([]Product, error) {
	q := backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{sellerEmbed},
		Filters: []backend.Filter{backend.Eq("status", string(StatusAvailable))},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	}
	if f.Category != "" {
		q.Filters = append(q.Filters, backend.Eq("category", f.Category))
	}
	if f.Search != "" {
		q.AnyOf = []backend.Filter{backend.Contains("name", f.Search), backend.Contains("description", f.Search)}
	}
	if f.MaxPrice > 0 {
		q.Filters = append(q.Filters, backend.Lte("price", f.MaxPrice))
	}
	return r.list(ctx, q)
}

func (r *tablesRepo) Get(ctx context.Context, id string) (Product, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{sellerEmbed},
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	return decodeOne(rows, err)
}

func (r *tablesRepo) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	return r.list(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.Eq("seller_id", sellerID)},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	})
}

func (r *tablesRepo) list(ctx context.Context, q backend.Query) ([]Product, error) {
	rows, err := r.tables.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Product, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	return decodeOne(rows, err)
}

func (r *tablesRepo) Update(ctx context.Context, id, sellerID string, values backend.Row) (Product, error) {
	rows, err := r.tables.Update(ctx, table, values, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("seller_id", sellerID),
	})
	return decodeOne(rows, err)
}

func (r *tablesRepo) Delete(ctx context.Context, id, sellerID string) error {
	return r.tables.Delete(ctx, table, []backend.Filter{
		backend.Eq("id", id),
		backend.Eq("seller_id", sellerID),
	})
}

func decodeOne(rows []backend.Row, err error) (Product, error) {
	if err != nil {
		return Product{}, err
	}
	var p Product
	if err := backend.DecodeOne(rows, &p); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}
