package services

import (
	"context"
	"errors"
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
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc, store
}

func seed(store *memory.Store) {
	store.Seed("profiles", backend.Row{"id": "prov", "full_name": "Clínica Pata", "rating": 5, "total_reviews": 3, "phone": "84 3333"})
	store.Seed("services",
		backend.Row{"id": "s1", "provider_id": "prov", "title": "Banho e tosa", "description": "Tosa higiênica", "category": "grooming", "price_from": 50, "price_to": 80, "status": "active", "location": "Natal - RN", "created_at": "2025-01-01T00:00:00Z"},
		backend.Row{"id": "s2", "provider_id": "prov", "title": "Consulta", "description": "Clínico geral", "category": "veterinary", "price_from": 150, "status": "active", "location": "Natal - RN", "created_at": "2025-02-01T00:00:00Z"},
		backend.Row{"id": "s3", "provider_id": "prov", "title": "Adestramento", "category": "training", "price_from": 90, "status": "inactive", "created_at": "2025-03-01T00:00:00Z"},
	)
}

func TestBrowse(t *testing.T) {
	svc, store := newTestService(t)
	seed(store)
	ctx := context.Background()

	all, err := svc.Browse(ctx, Filter{Category: "all"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)
	require.NotNil(t, all[0].Provider)
	assert.Equal(t, "Clínica Pata", all[0].Provider.FullName)

	cheap, err := svc.Browse(ctx, Filter{MaxPrice: 100})
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "s1", cheap[0].ID)

	byText, err := svc.Browse(ctx, Filter{Search: "higiênica"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "s1", byText[0].ID)
}

func TestGet_WithContact(t *testing.T) {
	svc, store := newTestService(t)
	seed(store)

	l, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, l.Contact)
	assert.Equal(t, "84 3333", l.Contact.Phone)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdd_WithAndWithoutImage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	l, err := svc.Add(ctx, AddInput{ProviderID: "prov", Title: "Hotel", Category: CategoryBoarding, PriceFrom: 70, Location: "Natal"})
	require.NoError(t, err)
	assert.Empty(t, l.ImageURL)
	assert.Equal(t, StatusActive, l.Status)
	assert.Zero(t, store.CountCalls("upload", ""))

	l, err = svc.Add(ctx, AddInput{
		ProviderID: "prov", Title: "Creche", Category: CategoryTemporary, PriceFrom: 40, Location: "Natal",
		Image: &media.File{Name: "c.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Contains(t, l.ImageURL, "/"+media.BucketServices+"/")
	assert.Equal(t, 1, store.CountCalls("upload", media.BucketServices))
}

func TestAdd_Validation(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Add(context.Background(), AddInput{Title: "x", Category: CategoryOther, Location: "y"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Add(context.Background(), AddInput{ProviderID: "p", Title: "x", Category: "spa", Location: "y"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Add(context.Background(), AddInput{ProviderID: "p", Title: "x", Category: CategoryOther, Location: "y", PriceFrom: 100, PriceTo: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, store.Calls())
}

func TestAdd_InsertFailureRemovesUpload(t *testing.T) {
	svc, store := newTestService(t)
	boom := errors.New("insert failed")
	store.Fail("insert", "services", boom)

	_, err := svc.Add(context.Background(), AddInput{
		ProviderID: "prov", Title: "Creche", Category: CategoryTemporary, Location: "Natal",
		Image: &media.File{Name: "c.png", Data: []byte("png")},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.CountCalls("remove", media.BucketServices))
}

func TestListByProvider_RefetchesAfterAdd(t *testing.T) {
	svc, store := newTestService(t)
	seed(store)
	ctx := context.Background()

	items, err := svc.ListByProvider(ctx, "prov")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = svc.Add(ctx, AddInput{ProviderID: "prov", Title: "Passeio", Category: CategoryOther, Location: "Natal"})
	require.NoError(t, err)

	items, err = svc.ListByProvider(ctx, "prov")
	require.NoError(t, err)
	assert.Len(t, items, 4)

	empty, err := svc.ListByProvider(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	svc, store := newTestService(t)
	seed(store)
	store.Seed("favorites", backend.Row{"user_id": "u", "item_id": "s1", "item_type": "service"})
	ctx := context.Background()
	inactive := StatusInactive

	_, err := svc.Update(ctx, UpdateInput{ID: "s1", ProviderID: "intruder", Status: &inactive})
	assert.ErrorIs(t, err, ErrForbidden)

	l, err := svc.Update(ctx, UpdateInput{ID: "s1", ProviderID: "prov", Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, l.Status)

	low := 10.0
	_, err = svc.Update(ctx, UpdateInput{ID: "s1", ProviderID: "prov", PriceTo: &low})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.Delete(ctx, DeleteInput{ID: "s1", ProviderID: "prov"}))
	assert.Len(t, store.Rows("services"), 2)
	assert.Empty(t, store.Rows("favorites"))
}
