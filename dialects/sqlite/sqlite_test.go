package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialects/sqlite"
)

func open(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open(sqlite.DriverName, ":memory:")
	require.NoError(t, err)
	// every connection of :memory: is a new database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestGetFields(t *testing.T) {
	db := open(t,
		"CREATE TABLE people (id INTEGER PRIMARY KEY, name VARCHAR(64), age INT NOT NULL, price DECIMAL(18,2))",
		"CREATE TABLE links (a INTEGER, b INTEGER, PRIMARY KEY (a, b))",
	)
	d := sqlite.New()

	fields, err := d.GetFields(context.Background(), db, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age", "price"}, fields.Names())

	id := fields.Get("id")
	assert.True(t, id.IsPrimary)
	assert.True(t, id.IsIdentity)
	assert.False(t, id.IsNullable)
	assert.Equal(t, dbtype.Int64Type, id.Type)

	name := fields.Get("name")
	assert.True(t, name.IsNullable)
	assert.Equal(t, 64, name.Size)
	assert.Equal(t, dbtype.StringType, name.Type)

	age := fields.Get("age")
	assert.False(t, age.IsNullable)
	assert.Equal(t, dbtype.Int64Type, age.Type)

	price := fields.Get("price")
	assert.Equal(t, 18, price.Precision)
	assert.Equal(t, 2, price.Scale)
	assert.Equal(t, dbtype.Float64Type, price.Type)

	links, err := d.GetFields(context.Background(), db, "links")
	require.NoError(t, err)
	for _, f := range links {
		assert.True(t, f.IsPrimary)
		assert.False(t, f.IsIdentity, "composite keys do not alias the rowid")
	}

	missing, err := d.GetFields(context.Background(), db, "nothing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMerge(t *testing.T) {
	db := open(t, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)")
	d := sqlite.New()

	stmt, err := d.Merge("people", []string{"id", "name"}, []string{"id"}, "id")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `people` (`id`, `name`) VALUES (@id, @name) ON CONFLICT (`id`) DO UPDATE SET `name` = excluded.`name`", stmt)

	for _, name := range []string{"Ada", "Grace"} {
		_, err := db.Exec(stmt, sql.Named("id", 1), sql.Named("name", name))
		require.NoError(t, err)
	}
	var (
		count int
		name  string
	)
	require.NoError(t, db.QueryRow("SELECT COUNT(*), MAX(name) FROM people").Scan(&count, &name))
	assert.Equal(t, 1, count)
	assert.Equal(t, "Grace", name)

	stmt, err = d.Merge("people", []string{"id"}, []string{"id"}, "")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `people` (`id`) VALUES (@id) ON CONFLICT (`id`) DO NOTHING", stmt)
}

func TestInsertAll(t *testing.T) {
	db := open(t, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)")

	stmt, err := sqlite.New().InsertAll("people", []string{"name"}, 2, "id")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `people` (`name`) VALUES (@name), (@name_1)", stmt)

	res, err := db.Exec(stmt, sql.Named("name", "a"), sql.Named("name_1", "b"))
	require.NoError(t, err)
	last, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)
}
