package profiles

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
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestGet_NoIdentityMakesNoCalls(t *testing.T) {
	svc, store := newTestService(t)

	p, err := svc.Get(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, store.Calls())
}

func TestGet_MissingProfileIsNil(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGet_IsCached(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles", backend.Row{"id": "u1", "full_name": "Ana"})
	ctx := context.Background()

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ana", p.FullName)

	_, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.CountCalls("select", "profiles"))
}

func TestSummaries_SingleBatchedQuery(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles",
		backend.Row{"id": "a", "full_name": "Ana", "rating": 4.5},
		backend.Row{"id": "b", "full_name": "Bia"},
		backend.Row{"id": "c", "full_name": "Caio"},
	)

	out, err := svc.Summaries(context.Background(), []string{"b", "a", "b", ""})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 4.5, out["a"].Rating)
	assert.Equal(t, 1, store.CountCalls("select", "profiles"))

	empty, err := svc.Summaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, store.CountCalls("select", "profiles"))
}

func TestContact_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Contact(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_UpsertsAndInvalidates(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles", backend.Row{"id": "u1", "full_name": "Ana", "phone": "1"})
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	require.NoError(t, err)

	name := " Ana Maria "
	updated, err := svc.Update(ctx, UpdateInput{UserID: "u1", FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.FullName)
	assert.Equal(t, "1", updated.Phone)

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", p.FullName)
	assert.Equal(t, 2, store.CountCalls("select", "profiles"))
}

func TestUpdate_Validation(t *testing.T) {
	svc, store := newTestService(t)
	bad := UserType("admin")
	blank := "  "

	_, err := svc.Update(context.Background(), UpdateInput{UserID: "u1", UserType: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(context.Background(), UpdateInput{UserID: "u1", FullName: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(context.Background(), UpdateInput{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, store.Calls())
}

func TestUpdateImage_RemovesThenUploadsWithUpsert(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles", backend.Row{"id": "u1", "full_name": "Ana"})
	require.NoError(t, store.Upload(context.Background(), media.BucketProfiles, "u1.png", []byte("old"), backend.UploadOptions{}))
	store.ResetCalls()

	p, err := svc.UpdateImage(context.Background(), ImageInput{UserID: "u1", File: media.File{Name: "nova.png", Data: []byte("new")}})
	require.NoError(t, err)
	assert.Equal(t, store.PublicURL(media.BucketProfiles, "u1.png"), p.AvatarURL)

	data, ok := store.Object(media.BucketProfiles, "u1.png")
	require.True(t, ok)
	assert.Equal(t, "new", string(data))

	calls := store.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "remove", calls[0].Op)
	assert.Equal(t, "upload", calls[1].Op)
	assert.Equal(t, "update", calls[2].Op)
}

func TestRemoveImage(t *testing.T) {
	svc, store := newTestService(t)
	store.Seed("profiles", backend.Row{"id": "u1", "avatar_url": "http://x/u1.jpg"})
	require.NoError(t, store.Upload(context.Background(), media.BucketProfiles, "u1.jpg", []byte("x"), backend.UploadOptions{}))

	p, err := svc.RemoveImage(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, p.AvatarURL)
	_, ok := store.Object(media.BucketProfiles, "u1.jpg")
	assert.False(t, ok)
}

func TestEnsure_CreatesOnceFromMetadata(t *testing.T) {
	svc, store := newTestService(t)
	user := backend.User{ID: "u1", Email: "ana@x.com", Metadata: map[string]any{"full_name": "Ana", "phone": "99"}}
	ctx := context.Background()

	p, err := svc.Ensure(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FullName)
	assert.Equal(t, UserTypeConsumer, p.UserType)

	_, err = svc.Ensure(ctx, user)
	require.NoError(t, err)
	assert.Len(t, store.Rows("profiles"), 1)
	assert.Equal(t, 1, store.CountCalls("insert", "profiles"))
}

func TestGet_BackendErrorPropagates(t *testing.T) {
	svc, store := newTestService(t)
	boom := errors.New("boom")
	store.Fail("select", "profiles", boom)

	_, err := svc.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}
