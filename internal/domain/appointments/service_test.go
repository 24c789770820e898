package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/profiles"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cache := querycache.New(querycache.Config{})
	profileSvc := profiles.NewService(profiles.NewRepository(store), store, cache, nil)
	petSvc := pets.NewService(pets.NewRepository(store), store, cache, nil)
	svc := NewService(NewRepository(store), profileSvc, petSvc, cache, nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }

	store.Seed("profiles",
		backend.Row{"id": "vet", "full_name": "Dra. Clara", "phone": "84 1111", "user_type": "veterinarian"},
		backend.Row{"id": "own", "full_name": "João", "phone": "84 2222", "user_type": "consumer"},
		backend.Row{"id": "sel", "full_name": "Ana", "phone": "84 3333", "user_type": "seller"},
	)
	store.Seed("pets",
		backend.Row{"id": "p1", "seller_id": "sel", "name": "Rex", "breed": "Vira-lata", "status": "available"},
	)
	return svc, store
}

func validInput() CreateInput {
	return CreateInput{
		OwnerID:        "own",
		VeterinarianID: "vet",
		PetID:          "p1",
		Date:           "2025-07-10",
		Time:           "09:30",
	}
}

func TestCreate_Scheduled(t *testing.T) {
	svc, store := newTestService(t)

	a, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, "own", a.OwnerID)
	assert.Equal(t, "vet", a.VeterinarianID)
	assert.Len(t, store.Rows("appointments"), 1)
}

func TestCreate_Rejections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*CreateInput)
		want error
	}{
		{"no identity", func(in *CreateInput) { in.OwnerID = "" }, ErrUnauthenticated},
		{"bad date", func(in *CreateInput) { in.Date = "10/07/2025" }, ErrInvalidInput},
		{"bad time", func(in *CreateInput) { in.Time = "9h" }, ErrInvalidInput},
		{"self", func(in *CreateInput) { in.OwnerID = "vet" }, ErrOwnAppointment},
		{"unknown vet", func(in *CreateInput) { in.VeterinarianID = "ghost" }, ErrVetNotFound},
		{"not a vet", func(in *CreateInput) { in.VeterinarianID = "sel" }, ErrNotVeterinarian},
		{"unknown pet", func(in *CreateInput) { in.PetID = "nope" }, ErrPetNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)
			_, err := svc.Create(ctx, in)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Empty(t, store.Rows("appointments"))
}

func TestListFor_RoleSelectsFilterAndCounterpart(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mine, err := svc.ListFor(ctx, "own", RoleConsumer)
	require.NoError(t, err)
	assert.Empty(t, mine)
	attending, err := svc.ListFor(ctx, "vet", RoleVeterinarian)
	require.NoError(t, err)
	assert.Empty(t, attending)

	_, err = svc.Create(ctx, validInput())
	require.NoError(t, err)
	later := validInput()
	later.Date = "2025-08-01"
	_, err = svc.Create(ctx, later)
	require.NoError(t, err)

	mine, err = svc.ListFor(ctx, "own", RoleConsumer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "2025-08-01", mine[0].Date)
	require.NotNil(t, mine[0].Pet)
	assert.Equal(t, "Rex", mine[0].Pet.Name)
	require.NotNil(t, mine[0].Veterinarian)
	assert.Equal(t, "Dra. Clara", mine[0].Veterinarian.FullName)
	assert.Nil(t, mine[0].Owner)

	attending, err = svc.ListFor(ctx, "vet", RoleVeterinarian)
	require.NoError(t, err)
	require.Len(t, attending, 2)
	require.NotNil(t, attending[0].Owner)
	assert.Equal(t, "84 2222", attending[0].Owner.Phone)
	assert.Nil(t, attending[0].Veterinarian)

	other, err := svc.ListFor(ctx, "own", RoleVeterinarian)
	require.NoError(t, err)
	assert.Empty(t, other)

	store.ResetCalls()
	empty, err := svc.ListFor(ctx, "", RoleConsumer)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Empty(t, store.Calls())

	_, err = svc.ListFor(ctx, "own", Role("admin"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoleFor_UsesProfileType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.RoleFor(ctx, "vet")
	require.NoError(t, err)
	assert.Equal(t, RoleVeterinarian, role)

	role, err = svc.RoleFor(ctx, "own")
	require.NoError(t, err)
	assert.Equal(t, RoleConsumer, role)

	role, err = svc.RoleFor(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, RoleConsumer, role)
}
