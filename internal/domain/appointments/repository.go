package appointments

import (
	"context"
	"errors"

	"pet-marketplace/internal/ports/backend"
)

const table = "appointments"

var (
	petEmbed = backend.Embed{
		Alias:      "pet",
		Table:      "pets",
		ForeignKey: "pet_id",
		Columns:    []string{"name", "breed"},
	}
	veterinarianEmbed = backend.Embed{
		Alias:      "veterinarian",
		Table:      "profiles",
		ForeignKey: "veterinarian_id",
		Columns:    []string{"full_name", "phone"},
	}
	ownerEmbed = backend.Embed{
		Alias:      "owner",
		Table:      "profiles",
		ForeignKey: "owner_id",
		Columns:    []string{"full_name", "phone"},
	}
)

type Repository interface {
	ListFor(ctx context.Context, uid string, role Role) ([]Appointment, error)
	Insert(ctx context.Context, row backend.Row) (Appointment, error)
}

type tablesRepo struct {
	tables backend.Tables
}

func NewRepository(tables backend.Tables) Repository {
	return &tablesRepo{tables: tables}
}

// ListFor filtra por la columna del rol y embebe la contraparte.
func (r *tablesRepo) ListFor(ctx context.Context, uid string, role Role) ([]Appointment, error) {
	q := backend.Query{
		Table: table,
		Order: []backend.Order{{Column: "date", Desc: true}, {Column: "time", Desc: true}},
	}
	if role == RoleVeterinarian {
		q.Embeds = []backend.Embed{petEmbed, ownerEmbed}
		q.Filters = []backend.Filter{backend.Eq("veterinarian_id", uid)}
	} else {
		q.Embeds = []backend.Embed{petEmbed, veterinarianEmbed}
		q.Filters = []backend.Filter{backend.Eq("owner_id", uid)}
	}

	rows, err := r.tables.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Appointment, 0, len(rows))
	return out, backend.Decode(rows, &out)
}

func (r *tablesRepo) Insert(ctx context.Context, row backend.Row) (Appointment, error) {
	rows, err := r.tables.Insert(ctx, table, []backend.Row{row})
	if err != nil {
		return Appointment{}, err
	}
	var a Appointment
	if err := backend.DecodeOne(rows, &a); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return Appointment{}, ErrMissingRow
		}
		return Appointment{}, err
	}
	return a, nil
}
