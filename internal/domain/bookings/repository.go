package bookings

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const table = "bookings"

var (
	serviceEmbed = backend.Embed{
		Alias:      "service",
		Table:      "services",
		ForeignKey: "service_id",
		Columns:    []string{"title", "category"},
	}
	providerEmbed = backend.Embed{
		Alias:      "provider",
		Table:      "profiles",
		ForeignKey: "provider_id",
		Columns:    []string{"full_name", "phone"},
	}
	customerEmbed = backend.Embed{
		Alias:      "customer",
		Table:      "profiles",
		ForeignKey: "customer_id",
		Columns:    []string{"full_name", "phone"},
	}
)

type Repository interface {
	ListForCustomer(ctx context.Context, customerID string) ([]Booking, error)
	ListForProvider(ctx context.Context, providerID string) ([]Booking, error)
	Insert(ctx context.Context, row backend.Row) (Booking, error)
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

func (r *tablesRepo) ListForCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return r.list(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{serviceEmbed, providerEmbed},
		Filters: []backend.Filter{backend.Eq("customer_id", customerID)},
		Order:   []backend.Order{{Column: "booking_date", Desc: true}},
	})
}

func (r *tablesRepo) ListForProvider(ctx context.Context, providerID string) ([]Booking, error) {
	return r.list(ctx, backend.Query{
		Table:   table,
		Embeds:  []backend.Embed{serviceEmbed, customerEmbed},
		Filters: []backend.Filter{backend.Eq("provider_id", providerID)},
		Order:   []backend.Order{{Column: "booking_date", Desc: true}},
	})
}

func (r *tablesRepo) list(ctx context.Context, q backend.Query) ([]Booking, error) {
	rows, err := r.tables.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Booking, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Booking, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	if err != nil {
		return Booking{}, err
	}
	var b Booking
	if err := backend.DecodeOne(rows, &b); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Booking{}, ErrMissingRow
		}
		return Booking{}, err
	}
	return b, nil
}
