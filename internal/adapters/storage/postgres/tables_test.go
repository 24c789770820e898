package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"pet-marketplace/internal/ports/backend"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockTables(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Tables) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock, NewTables(db)
}

func TestTables_Select_BuildsWhereOrderLimit(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT * FROM "pets" WHERE "status" = $1 AND "category" = $2 AND ("name" ILIKE $3 OR "description" ILIKE $4) ORDER BY "created_at" DESC LIMIT 20`)).
		WithArgs("available", "dogs", "%rex%", "%rex%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow("p1", []byte("Rex"), created))

	rows, err := tables.Select(context.Background(), backend.Query{
		Table:   "pets",
		Filters: []backend.Filter{backend.Eq("status", "available"), backend.Eq("category", "dogs")},
		AnyOf:   []backend.Filter{backend.Contains("name", "rex"), backend.Contains("description", "rex")},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
		Limit:   20,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rex", rows[0]["name"])
	assert.Equal(t, created, rows[0]["created_at"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_Select_EmbedUsesSingleBatchedQuery(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "title", "provider_id" FROM "services"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "provider_id"}).
			AddRow("s1", "Banho", "u1").
			AddRow("s2", "Tosa", "u1").
			AddRow("s3", "Hotel", "u2"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "full_name" FROM "profiles" WHERE "id" IN ($1, $2)`)).
		WithArgs("u1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).
			AddRow("u1", "Ana").
			AddRow("u2", "Bruno"))

	rows, err := tables.Select(context.Background(), backend.Query{
		Table:   "services",
		Columns: []string{"id", "title"},
		Embeds:  []backend.Embed{{Alias: "provider", Table: "profiles", ForeignKey: "provider_id", Columns: []string{"full_name"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, backend.Row{"full_name": "Ana"}, rows[0]["provider"])
	assert.Equal(t, backend.Row{"full_name": "Bruno"}, rows[2]["provider"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_Select_EmptyInIsFalse(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "pets" WHERE FALSE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := tables.Select(context.Background(), backend.Query{
		Table:   "pets",
		Filters: []backend.Filter{backend.In("id", nil)},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_Select_RejectsBadIdentifier(t *testing.T) {
	db, _, tables := newMockTables(t)
	defer db.Close()

	_, err := tables.Select(context.Background(), backend.Query{Table: "pets; drop table pets"})
	assert.Error(t, err)
}

func TestTables_Insert_MultiRowWithDefault(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "pet_images" ("image_url", "pet_id", "position") VALUES ($1, $2, $3), ($4, $5, DEFAULT) RETURNING *`)).
		WithArgs("a.png", "p1", 0, "b.png", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pet_id", "image_url"}).
			AddRow("i1", "p1", "a.png").
			AddRow("i2", "p1", "b.png"))

	rows, err := tables.Insert(context.Background(), "pet_images", []backend.Row{
		{"pet_id": "p1", "image_url": "a.png", "position": 0},
		{"pet_id": "p1", "image_url": "b.png"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_Insert_UniqueViolationIsConflict(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "favorites"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	_, err := tables.Insert(context.Background(), "favorites", []backend.Row{{"user_id": "u1", "item_id": "p1", "item_type": "pet"}})
	assert.ErrorIs(t, err, backend.ErrConflict)
}

func TestTables_Upsert_OnConflictUpdate(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO "profiles" ("city", "id") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "city" = EXCLUDED."city" RETURNING *`)).
		WithArgs("Recife", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "city"}).AddRow("u1", "Recife"))

	rows, err := tables.Upsert(context.Background(), "profiles", []backend.Row{{"id": "u1", "city": "Recife"}})
	require.NoError(t, err)
	assert.Equal(t, "Recife", rows[0]["city"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTables_UpdateAndDelete(t *testing.T) {
	db, mock, tables := newMockTables(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE "pets" SET "name" = $1, "status" = $2 WHERE "id" = $3 AND "owner_id" = $4 RETURNING *`)).
		WithArgs("Rex", "adopted", "p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("p1", "adopted"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "pet_images" WHERE "pet_id" = $1`)).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	ctx := context.Background()
	rows, err := tables.Update(ctx, "pets", backend.Row{"status": "adopted", "name": "Rex"},
		[]backend.Filter{backend.Eq("id", "p1"), backend.Eq("owner_id", "u1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, tables.Delete(ctx, "pet_images", []backend.Filter{backend.Eq("pet_id", "p1")}))
	assert.Error(t, tables.Delete(ctx, "pet_images", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
