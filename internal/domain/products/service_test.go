package products

import (
	"context"
	"testing"
	"time"

	"pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/domain/media"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(NewRepository(store), store, querycache.New(querycache.Config{}), nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestBrowse_FiltersByPriceAndText(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles", backend.Row{"id": "s", "full_name": "Pet Shop"})
	store.Seed("products",
		backend.Row{"id": "a", "seller_id": "s", "name": "Ração premium", "description": "15kg", "price": 200, "category": "food", "status": "available", "created_at": "2025-01-01T00:00:00Z"},
		backend.Row{"id": "b", "seller_id": "s", "name": "Bolinha", "description": "Brinquedo de borracha", "price": 15.5, "category": "toys", "status": "available", "created_at": "2025-02-01T00:00:00Z"},
		backend.Row{"id": "c", "seller_id": "s", "name": "Coleira", "price": 30, "category": "accessories", "status": "unavailable", "created_at": "2025-03-01T00:00:00Z"},
	)
	ctx := context.Background()

	all, err := svc.Browse(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	require.NotNil(t, all[0].Seller)
	assert.Equal(t, "Pet Shop", all[0].Seller.FullName)

	cheap, err := svc.Browse(ctx, Filter{MaxPrice: 100})
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "b", cheap[0].ID)

	rubber, err := svc.Browse(ctx, Filter{Search: "BORRACHA"})
	require.NoError(t, err)
	require.Len(t, rubber, 1)

	food, err := svc.Browse(ctx, Filter{Category: "food"})
	require.NoError(t, err)
	require.Len(t, food, 1)
	assert.Equal(t, "a", food[0].ID)
}

func TestAdd_UpdateDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddInput{SellerID: "s", Name: "Petisco", Price: 0, Category: CategoryFood})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, store.Calls())

	p, err := svc.Add(ctx, AddInput{
		SellerID: "s", Name: "Petisco", Price: 9.9, Category: CategoryFood, Stock: 5,
		Image: &media.File{Name: "p.webp", Data: []byte("img")},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, p.Status)
	assert.Equal(t, 5, p.Stock)

	mine, err := svc.ListBySeller(ctx, "s")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	stock := 0
	_, err = svc.Update(ctx, UpdateInput{ID: p.ID, SellerID: "other", Stock: &stock})
	assert.ErrorIs(t, err, ErrForbidden)

	upd, err := svc.Update(ctx, UpdateInput{ID: p.ID, SellerID: "s", Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 0, upd.Stock)

	require.NoError(t, svc.Delete(ctx, DeleteInput{ID: p.ID, SellerID: "s"}))
	assert.Empty(t, store.Rows("products"))
	assert.Equal(t, 1, store.CountCalls("remove", media.BucketProducts))

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
