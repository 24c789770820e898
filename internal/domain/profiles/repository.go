package profiles

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const table = "profiles"

var (
	summaryColumns = []string{"id", "full_name", "avatar_url", "user_type", "rating", "total_reviews"}
	contactColumns = []string{"full_name", "phone", "location", "avatar_url", "rating", "total_reviews"}
)

type Repository interface {
	// Get devuelve backend.ErrNotFound si no existe.
	Get(ctx context.Context, id string) (Profile, error)
	Contact(ctx context.Context, id string) (Contact, error)
	Summaries(ctx context.Context, ids []string) ([]Summary, error)
	Insert(ctx context.Context, row backend.Row) (Profile, error)
	Upsert(ctx context.Context, row backend.Row) (Profile, error)
	Update(ctx context.Context, id string, values backend.Row) (Profile, error)
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) Get(ctx context.Context, id string) (Profile, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	return p, backend.DecodeOne(rows, &p)
}

func (r *tablesRepo) Contact(ctx context.Context, id string) (Contact, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Columns: contactColumns,
		Filters: []backend.Filter{backend.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return Contact{}, err
	}
	var c Contact
	return c, backend.DecodeOne(rows, &c)
}

func (r *tablesRepo) Summaries(ctx context.Context, ids []string) ([]Summary, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Columns: summaryColumns,
		Filters: []backend.Filter{backend.In("id", ids)},
	})
	if err != nil {
		return nil, err
	}
	var out []Summary
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Profile, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	return decodeWritten(rows, err)
}

func (r *tablesRepo) Upsert(ctx context.Context, row backend.Row) (Profile, error) {
	rows, err := r.tables.Upsert(ctx, table, []backend.Row{row})
	return decodeWritten(rows, err)
}

func (r *tablesRepo) Update(ctx context.Context, id string, values backend.Row) (Profile, error) {
	rows, err := r.tables.Update(ctx, table, values, []backend.Filter{backend.Eq("id", id)})
	return decodeWritten(rows, err)
}

func decodeWritten(rows []backend.Row, err error) (Profile, error) {
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := backend.DecodeOne(rows, &p); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}
