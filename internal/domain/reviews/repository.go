package reviews

import (
	"context"

	"pet-marketplace/internal/ports/backend"
)

const table = "reviews"

var reviewerEmbed = backend.Embed{
	Alias:      "reviewer",
	Table:      "profiles",
	ForeignKey: "reviewer_id",
	Columns:    []string{"full_name", "avatar_url"},
}

type Repository interface {
	ListFor(ctx context.Context, reviewedID string) ([]Review, error)
	Insert(ctx context.Context, row backend.Row) (Review, error)
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) ListFor(ctx context.Context, reviewedID string) ([]Review, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{reviewerEmbed},
		Filters: []backend.Filter{backend.Eq("reviewed_id", reviewedID)},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Review, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Review, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	if err != nil {
		return Review{}, err
	}
	var rv Review
	return rv, backend.DecodeOne(rows, &rv)
}
