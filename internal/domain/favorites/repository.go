package favorites

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const table = "favorites"

type Repository interface {
	List(ctx context.Context, uid string) ([]Favorite, error)
	// Find devuelve backend.ErrNotFound si no existe.
	Find(ctx context.Context, uid, itemID string, itemType ItemType) (Favorite, error)
	Insert(ctx context.Context, uid, itemID string, itemType ItemType) (Favorite, error)
	Delete(ctx context.Context, uid, itemID string, itemType ItemType) error
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func keyFilters(uid, itemID string, itemType ItemType) []backend.Filter {
	return []backend.Filter{
		backend.Eq("item_id", itemID),
		backend.Eq("item_type", string(itemType)),
		backend.Eq("user_id", uid),
	}
}

func (r *tablesRepo) List(ctx context.Context, uid string) ([]Favorite, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Filters: []backend.Filter{backend.Eq("user_id", uid)},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Favorite, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Find(ctx context.Context, uid, itemID string, itemType ItemType) (Favorite, error) {
	rows, err := r.tables.Select(ctx, backend.Query{
		Table:   table,
		Filters: keyFilters(uid, itemID, itemType),
		Limit:   1,
	})
	if err != nil {
		return Favorite{}, err
	}
	var f Favorite
	return f, backend.DecodeOne(rows, &f)
}

func (r *tablesRepo) Insert(ctx context.Context, uid, itemID string, itemType ItemType) (Favorite, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{{
		"user_id":   uid,
		"item_id":   itemID,
		"item_type": string(itemType),
	}})
	if err != nil {
		return Favorite{}, err
	}
	var f Favorite
	if err := backend.DecodeOne(rows, &f); err != nil && !errors.Is(err, backend.ErrNotFound) {
		return Favorite{}, err
	}
	return f, nil
}

func (r *tablesRepo) Delete(ctx context.Context, uid, itemID string, itemType ItemType) error {
	return r.tables.Delete(ctx, table, keyFilters(uid, itemID, itemType))
}
