package reviews

import (
	"context"
	"testing"
	"time"

	"pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndList(t *testing.T) {
	store := memory.NewStore()
	cache := querycache.New(querycache.Config{})
	svc := NewService(NewRepository(store), cache, nil)
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { clock = clock.Add(time.Minute); return clock }
	store.Seed("profiles", backend.Row{"id": "rev", "full_name": "Maria", "avatar_url": "http://x/a.png"})
	ctx := context.Background()

	empty, err := svc.List(ctx, "vet")
	require.NoError(t, err)
	assert.Empty(t, empty)
	key := querycache.NewKey(EntityReviews, "vet")
	assert.Equal(t, querycache.StatusFresh, cache.Snapshot(key).Status)

	_, err = svc.Create(ctx, CreateInput{ReviewerID: "rev", ReviewedID: "vet", Rating: 4, Comment: " bom "})
	require.NoError(t, err)
	assert.Equal(t, querycache.StatusStale, cache.Snapshot(key).Status)
	_, err = svc.Create(ctx, CreateInput{ReviewerID: "rev", ReviewedID: "vet", Rating: 5})
	require.NoError(t, err)

	items, err := svc.List(ctx, "vet")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].Rating)
	assert.Equal(t, "bom", items[1].Comment)
	require.NotNil(t, items[0].Reviewer)
	assert.Equal(t, "Maria", items[0].Reviewer.FullName)
}

func TestCreate_Rejections(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(NewRepository(store), querycache.New(querycache.Config{}), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ReviewedID: "vet", Rating: 3})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Create(ctx, CreateInput{ReviewerID: "vet", ReviewedID: "vet", Rating: 3})
	require.ErrorIs(t, err, ErrSelfReview)

	for _, rating := range []int{0, 6} {
		_, err = svc.Create(ctx, CreateInput{ReviewerID: "rev", ReviewedID: "vet", Rating: rating})
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, store.Calls())
}
