package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/services"
	"pet-marketplace/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePets struct {
	items []pets.Pet
	err   error
	calls int
}

func (f *fakePets) ByIDs(ctx context.Context, ids []string) ([]pets.Pet, error) {
	f.calls++
	return f.items, f.err
}

type fakeServices struct {
	items []services.Listing
	err   error
	calls int
}

func (f *fakeServices) ByIDs(ctx context.Context, ids []string) ([]services.Listing, error) {
	f.calls++
	return f.items, f.err
}

func newTestService(t *testing.T) (*Service, *memory.Store, *fakePets, *fakeServices) {
	t.Helper()
	store := memory.NewStore()
	fp := &fakePets{}
	fs := &fakeServices{}
	svc := NewService(NewRepository(store), fp, fs, querycache.New(querycache.Config{}), nil)
	return svc, store, fp, fs
}

func TestToggle_Idempotent(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	in := Input{UserID: "U", ItemID: "P1", ItemType: ItemPet}

	on, err := svc.Toggle(ctx, in)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Len(t, store.Rows("favorites"), 1)

	on, err = svc.Toggle(ctx, in)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, store.Rows("favorites"))

	on, err = svc.Toggle(ctx, in)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Len(t, store.Rows("favorites"), 1)
}

func TestToggle_ConcurrentCallsAreSerialized(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	in := Input{UserID: "U", ItemID: "P1", ItemType: ItemPet}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Toggle(ctx, in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// cantidad par de toggles => vuelve al estado inicial
	assert.Empty(t, store.Rows("favorites"))
	assert.Equal(t, 0, svc.locks.size())
}

func TestToggle_RequiresIdentityAndValidItem(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, Input{ItemID: "P1", ItemType: ItemPet})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Toggle(ctx, Input{UserID: "U", ItemID: "P1", ItemType: "video"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, store.Calls())
}

func TestAddRemove_Idempotent(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	in := Input{UserID: "U", ItemID: "S1", ItemType: ItemService}

	first, err := svc.Add(ctx, in)
	require.NoError(t, err)
	second, err := svc.Add(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.Rows("favorites"), 1)

	require.NoError(t, svc.Remove(ctx, in))
	require.NoError(t, svc.Remove(ctx, in))
	assert.Empty(t, store.Rows("favorites"))
}

func TestAggregate_DropsMissingItems(t *testing.T) {
	svc, store, fp, fs := newTestService(t)
	ctx := context.Background()
	store.Seed("favorites",
		map[string]any{"user_id": "U", "item_id": "P1", "item_type": "pet"},
		map[string]any{"user_id": "U", "item_id": "P2", "item_type": "pet"},
		map[string]any{"user_id": "U", "item_id": "S1", "item_type": "service"},
	)
	fp.items = []pets.Pet{{ID: "P2", Name: "Mia"}}
	fs.items = []services.Listing{{ID: "S1", Title: "Banho e tosa"}}

	agg, err := svc.Aggregate(ctx, "U")
	require.NoError(t, err)
	assert.Len(t, agg.Favorites, 3)
	require.Len(t, agg.Pets, 1)
	assert.Equal(t, "P2", agg.Pets[0].ID)
	require.Len(t, agg.Services, 1)
	assert.Equal(t, 1, fp.calls)
	assert.Equal(t, 1, fs.calls)
}

func TestAggregate_LookupFailureLeavesTypeEmpty(t *testing.T) {
	svc, store, fp, fs := newTestService(t)
	ctx := context.Background()
	store.Seed("favorites",
		map[string]any{"user_id": "U", "item_id": "P1", "item_type": "pet"},
		map[string]any{"user_id": "U", "item_id": "S1", "item_type": "service"},
	)
	fp.err = errors.New("boom")
	fs.items = []services.Listing{{ID: "S1"}}

	agg, err := svc.Aggregate(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, agg.Pets)
	assert.NotNil(t, agg.Pets)
	assert.Len(t, agg.Services, 1)
}

func TestAggregate_NoIdentity(t *testing.T) {
	svc, store, fp, _ := newTestService(t)

	agg, err := svc.Aggregate(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, agg.Favorites)
	assert.Empty(t, store.Calls())
	assert.Equal(t, 0, fp.calls)
}

func TestIDs_ReflectToggle(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	ids, err := svc.IDs(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = svc.Toggle(ctx, Input{UserID: "U", ItemID: "P9", ItemType: ItemPet})
	require.NoError(t, err)

	ids, err = svc.IDs(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{"P9"}, ids)
}
