package postgres_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialects/postgres"
)

func TestGetFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"column_name", "is_nullable", "data_type", "udt_name",
		"character_maximum_length", "numeric_precision", "numeric_scale", "is_identity", "column_default", "primary"}).
		AddRow("id", "NO", "integer", "int4", nil, 32, 0, "NO", "nextval('people_id_seq'::regclass)", true).
		AddRow("email", "YES", "USER-DEFINED", "citext", nil, nil, nil, "NO", "", false).
		AddRow("created_at", "NO", "timestamp with time zone", "timestamptz", nil, nil, nil, "NO", "now()", false).
		AddRow("code", "NO", "character varying", "varchar", 12, nil, nil, "YES", "", false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("public", "people").
		WillReturnRows(rows)

	fields, err := postgres.New().GetFields(context.Background(), db, `"people"`)
	require.NoError(t, err)
	require.Len(t, fields, 4)

	id := fields.Get("id")
	assert.True(t, id.IsPrimary)
	assert.True(t, id.IsIdentity, "serial columns are identities")
	assert.Equal(t, dbtype.Int32Type, id.Type)

	email := fields.Get("email")
	assert.True(t, email.IsNullable)
	assert.Equal(t, dbtype.StringType, email.Type)
	assert.Equal(t, "citext", email.DatabaseType)

	assert.Equal(t, dbtype.TimeType, fields.Get("created_at").Type)
	code := fields.Get("code")
	assert.True(t, code.IsIdentity)
	assert.Equal(t, 12, code.Size)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatements(t *testing.T) {
	d := postgres.New()

	sql, err := d.Insert("people", []string{"name", "age"}, "id")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("name", "age") VALUES ($1, $2) RETURNING "id"`, sql)

	sql, err = d.Merge("people", []string{"id", "name"}, []string{"id"}, "id")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("id", "name") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name" RETURNING "id"`, sql)

	sql, err = d.Merge("tags", []string{"id"}, []string{"id"}, "")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "tags" ("id") VALUES ($1) ON CONFLICT ("id") DO UPDATE SET "id" = EXCLUDED."id"`, sql)

	_, err = d.Merge("tags", []string{"id"}, nil, "")
	assert.ErrorIs(t, err, builder.ErrNoFields)

	sql, err = d.Query("public.people", []string{"id"}, []builder.QueryField{builder.Contains("name", "A%")}, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "public"."people" WHERE "name" LIKE $1 LIMIT 1`, sql)
}
