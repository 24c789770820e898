package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet-marketplace/internal/ports/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPets(s *Store) {
	s.Seed("profiles",
		backend.Row{"id": "u1", "full_name": "Ana", "city": "Recife"},
		backend.Row{"id": "u2", "full_name": "Bruno", "city": "Natal"},
	)
	s.Seed("pets",
		backend.Row{"id": "p1", "owner_id": "u1", "name": "Rex", "category": "dogs", "status": "available", "location": "Recife - PE", "created_at": "2025-01-01T10:00:00Z"},
		backend.Row{"id": "p2", "owner_id": "u2", "name": "Mimi", "category": "cats", "status": "available", "location": "Natal - RN", "created_at": "2025-01-03T10:00:00Z"},
		backend.Row{"id": "p3", "owner_id": "u1", "name": "Bob", "category": "dogs", "status": "adopted", "location": "Recife - PE", "created_at": "2025-01-02T10:00:00Z"},
	)
}

func TestStore_Select_FiltersOrderAndEmbed(t *testing.T) {
	s := NewStore()
	seedPets(s)

	rows, err := s.Select(context.Background(), backend.Query{
		Table:   "pets",
		Filters: []backend.Filter{backend.Eq("status", "available")},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
		Embeds:  []backend.Embed{{Alias: "owner", Table: "profiles", ForeignKey: "owner_id", Columns: []string{"full_name"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "p2", rows[0]["id"])
	assert.Equal(t, "p1", rows[1]["id"])
	assert.Equal(t, backend.Row{"full_name": "Bruno"}, rows[0]["owner"])
	assert.Equal(t, 1, s.CountCalls("select", "pets"))
}

func TestStore_Select_ILikeAnyOfAndIn(t *testing.T) {
	s := NewStore()
	seedPets(s)
	ctx := context.Background()

	rows, err := s.Select(ctx, backend.Query{
		Table: "pets",
		AnyOf: []backend.Filter{backend.Contains("name", "re"), backend.Contains("location", "natal")},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.Select(ctx, backend.Query{
		Table:   "pets",
		Filters: []backend.Filter{backend.In("id", []string{"p1", "p3"})},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStore_Select_NumericComparison(t *testing.T) {
	s := NewStore()
	s.Seed("services",
		backend.Row{"id": "s1", "price_from": 50},
		backend.Row{"id": "s2", "price_from": 150.5},
		backend.Row{"id": "s3", "price_from": nil},
	)

	rows, err := s.Select(context.Background(), backend.Query{
		Table:   "services",
		Filters: []backend.Filter{backend.Lte("price_from", 100)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0]["id"])
}

func TestStore_Insert_FillsIDAndRejectsDuplicateUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	rows, err := s.Insert(ctx, "favorites", []backend.Row{{"user_id": "u1", "item_id": "p1", "item_type": "pet"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["id"])
	assert.NotEmpty(t, rows[0]["created_at"])

	_, err = s.Insert(ctx, "favorites", []backend.Row{{"user_id": "u1", "item_id": "p1", "item_type": "pet"}})
	assert.ErrorIs(t, err, backend.ErrConflict)
	assert.Len(t, s.Rows("favorites"), 1)
}

func TestStore_UpdateDeleteUpsert(t *testing.T) {
	s := NewStore()
	seedPets(s)
	ctx := context.Background()

	updated, err := s.Update(ctx, "pets", backend.Row{"status": "adopted"}, []backend.Filter{backend.Eq("id", "p1")})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "adopted", updated[0]["status"])

	require.NoError(t, s.Delete(ctx, "pets", []backend.Filter{backend.Eq("owner_id", "u1")}))
	assert.Len(t, s.Rows("pets"), 1)

	assert.Error(t, s.Delete(ctx, "pets", nil))

	_, err = s.Upsert(ctx, "profiles", []backend.Row{{"id": "u1", "city": "Olinda"}, {"id": "u9", "full_name": "Nova"}})
	require.NoError(t, err)
	profiles := s.Rows("profiles")
	require.Len(t, profiles, 3)
	assert.Equal(t, "Olinda", profiles[0]["city"])
	assert.Equal(t, "Ana", profiles[0]["full_name"])
}

func TestStore_FailInjectionIsOneShot(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	s.Fail("select", "pets", boom)

	_, err := s.Select(context.Background(), backend.Query{Table: "pets"})
	assert.ErrorIs(t, err, boom)

	_, err = s.Select(context.Background(), backend.Query{Table: "pets"})
	assert.NoError(t, err)
	assert.Equal(t, 2, s.CountCalls("select", ""))
}

func TestStore_Storage(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "pets", "a.png", []byte("x"), backend.UploadOptions{ContentType: "image/png"}))
	err := s.Upload(ctx, "pets", "a.png", []byte("y"), backend.UploadOptions{})
	assert.ErrorIs(t, err, backend.ErrConflict)

	require.NoError(t, s.Upload(ctx, "pets", "a.png", []byte("y"), backend.UploadOptions{Upsert: true}))
	b, ok := s.Object("pets", "a.png")
	require.True(t, ok)
	assert.Equal(t, "y", string(b))

	assert.Equal(t, "http://localhost:8080/storage/v1/object/public/pets/a.png", s.PublicURL("pets", "a.png"))

	require.NoError(t, s.Remove(ctx, "pets", []string{"a.png", "missing.png"}))
	_, ok = s.Object("pets", "a.png")
	assert.False(t, ok)
}

func TestStore_Auth_Flow(t *testing.T) {
	s := NewStore()
	s.AutoConfirm = false
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	u, err := s.SignUp(ctx, "Ana@Example.com", "secret123", map[string]any{"full_name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, "Ana", u.MetadataString("full_name"))

	_, err = s.SignUp(ctx, "ana@example.com", "x", nil)
	assert.ErrorIs(t, err, backend.ErrConflict)

	_, err = s.SignIn(ctx, "ana@example.com", "secret123")
	assert.ErrorIs(t, err, backend.ErrEmailNotConfirmed)

	sess, err := s.VerifyEmail(ctx, s.VerificationToken("ana@example.com"), "signup")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)

	_, err = s.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	sess, err = s.SignIn(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)

	got, err := s.GetUser(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	now = now.Add(2 * time.Hour)
	_, err = s.GetUser(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	require.NoError(t, s.SignOut(ctx, sess.AccessToken))
}
